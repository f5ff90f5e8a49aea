package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/medidesk/clinic-api/internal/config"
	"github.com/medidesk/clinic-api/internal/email"
	"github.com/medidesk/clinic-api/internal/repository/postgres"
	reminderService "github.com/medidesk/clinic-api/internal/service/reminder"
	"github.com/medidesk/clinic-api/internal/worker"
	"github.com/medidesk/clinic-api/pkg/logger"
	"github.com/medidesk/clinic-api/pkg/metrics"
)

// WorkerEnv holds the env-only overrides for the reminder worker.
type WorkerEnv struct {
	HealthPort       int `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
	IntervalSeconds  int `envconfig:"REMINDER_INTERVAL_SECONDS" default:"0"`
	LookaheadMinutes int `envconfig:"REMINDER_LOOKAHEAD_MINUTES" default:"0"`
}

func setupHealthCheck(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var env WorkerEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker env")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})

	interval := cfg.Reminder.Interval()
	if env.IntervalSeconds > 0 {
		interval = time.Duration(env.IntervalSeconds) * time.Second
	}
	lookahead := cfg.Reminder.Lookahead()
	if env.LookaheadMinutes > 0 {
		lookahead = time.Duration(env.LookaheadMinutes) * time.Minute
	}

	reminderSvc := reminderService.NewService(
		appointmentRepo,
		emailSvc,
		appLogger,
		metrics.New("clinic_worker"),
		lookahead,
	)
	reminderWorker := worker.NewReminderWorker(reminderSvc, interval, appLogger)

	setupHealthCheck(env.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down")
		cancel()
	}()

	reminderWorker.Start(ctx)
}
