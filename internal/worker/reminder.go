package worker

import (
	"context"
	"time"

	"github.com/medidesk/clinic-api/internal/service/reminder"
	"github.com/medidesk/clinic-api/pkg/logger"
)

// ReminderWorker drives the reminder service on a fixed cadence. The loop is
// strictly sequential: a slow cycle delays its own completion, never the
// schedule of the next tick.
type ReminderWorker struct {
	svc      *reminder.Service
	interval time.Duration
	logger   *logger.Logger
}

func NewReminderWorker(svc *reminder.Service, interval time.Duration, l *logger.Logger) *ReminderWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWorker{
		svc:      svc,
		interval: interval,
		logger:   l,
	}
}

// Start blocks until ctx is cancelled, running one reminder cycle per tick.
// Each cycle gets its own derived context; no state is carried between
// cycles. Cancellation takes effect at the tick boundary.
func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reminder worker started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker shutting down")
			return
		case <-ticker.C:
			cycleCtx := context.WithoutCancel(ctx)
			if err := w.svc.RunOnce(cycleCtx, time.Now()); err != nil {
				w.logger.Error(err, "reminder cycle failed")
			}
		}
	}
}
