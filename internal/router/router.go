package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medidesk/clinic-api/internal/handler"
	appointmentHandler "github.com/medidesk/clinic-api/internal/handler/appointment"
	authHandler "github.com/medidesk/clinic-api/internal/handler/auth"
	doctorHandler "github.com/medidesk/clinic-api/internal/handler/doctor"
	medicalrecordHandler "github.com/medidesk/clinic-api/internal/handler/medicalrecord"
	patientHandler "github.com/medidesk/clinic-api/internal/handler/patient"
	"github.com/medidesk/clinic-api/internal/middleware"
)

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	engine         *gin.Engine
	auth           *middleware.AuthMiddleware
	authH          *authHandler.Handler
	appointmentH   *appointmentHandler.Handler
	doctorH        *doctorHandler.Handler
	patientH       *patientHandler.Handler
	medicalrecordH *medicalrecordHandler.Handler
	healthH        *handler.HealthHandler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH *authHandler.Handler,
	appointmentH *appointmentHandler.Handler,
	doctorH *doctorHandler.Handler,
	patientH *patientHandler.Handler,
	medicalrecordH *medicalrecordHandler.Handler,
	healthH *handler.HealthHandler,
	cfg Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	if cfg.RateLimitRPS > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return &Router{
		engine:         engine,
		auth:           auth,
		authH:          authH,
		appointmentH:   appointmentH,
		doctorH:        doctorH,
		patientH:       patientH,
		medicalrecordH: medicalrecordH,
		healthH:        healthH,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/health/live", r.healthH.Live)
	r.engine.GET("/health/ready", r.healthH.Ready)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	// Public routes
	r.authH.RegisterRoutes(api)

	// Authenticated routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.appointmentH.RegisterRoutes(protected)
	r.doctorH.RegisterRoutes(protected)
	r.patientH.RegisterRoutes(protected)
	r.medicalrecordH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
