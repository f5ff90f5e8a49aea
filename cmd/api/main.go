package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medidesk/clinic-api/internal/config"
	"github.com/medidesk/clinic-api/internal/handler"
	appointmentHandler "github.com/medidesk/clinic-api/internal/handler/appointment"
	authHandler "github.com/medidesk/clinic-api/internal/handler/auth"
	doctorHandler "github.com/medidesk/clinic-api/internal/handler/doctor"
	medicalrecordHandler "github.com/medidesk/clinic-api/internal/handler/medicalrecord"
	patientHandler "github.com/medidesk/clinic-api/internal/handler/patient"
	"github.com/medidesk/clinic-api/internal/middleware"
	"github.com/medidesk/clinic-api/internal/repository/postgres"
	"github.com/medidesk/clinic-api/internal/router"
	appointmentService "github.com/medidesk/clinic-api/internal/service/appointment"
	authService "github.com/medidesk/clinic-api/internal/service/auth"
	doctorService "github.com/medidesk/clinic-api/internal/service/doctor"
	medicalService "github.com/medidesk/clinic-api/internal/service/medical"
	patientService "github.com/medidesk/clinic-api/internal/service/patient"
	pkgauth "github.com/medidesk/clinic-api/pkg/auth"
	"github.com/medidesk/clinic-api/pkg/logger"
	"github.com/medidesk/clinic-api/pkg/messaging"
	redisbroker "github.com/medidesk/clinic-api/pkg/messaging/redis"
	"github.com/medidesk/clinic-api/pkg/metrics"
	"github.com/medidesk/clinic-api/pkg/security"
	"github.com/medidesk/clinic-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := validator.RegisterCustomValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	userRepo := postgres.NewUserRepository(db)
	medicalRecordRepo := postgres.NewMedicalRecordRepository(db)

	// Optional event broker
	var broker messaging.Broker
	if cfg.Redis.Enabled {
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		}, &appLogger.ZL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}

	appMetrics := metrics.New("clinic_api")

	// Services
	jwtSvc := pkgauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	hasher := security.NewBcryptHasher(12)
	authSvc := authService.NewService(userRepo, doctorRepo, patientRepo, jwtSvc, hasher)
	appointmentSvc := appointmentService.NewService(appointmentRepo, doctorRepo, patientRepo, broker, appMetrics, appLogger)
	doctorSvc := doctorService.NewService(doctorRepo)
	patientSvc := patientService.NewService(patientRepo)
	medicalSvc := medicalService.NewService(medicalRecordRepo)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		doctorHandler.NewHandler(doctorSvc),
		patientHandler.NewHandler(patientSvc),
		medicalrecordHandler.NewHandler(medicalSvc),
		handler.NewHealthHandler(db),
		router.Config{
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
