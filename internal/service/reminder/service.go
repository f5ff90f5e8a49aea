package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medidesk/clinic-api/internal/email"
	"github.com/medidesk/clinic-api/internal/model"
	"github.com/medidesk/clinic-api/internal/repository"
	"github.com/medidesk/clinic-api/pkg/logger"
	"github.com/medidesk/clinic-api/pkg/metrics"
)

// DefaultLookahead is the window ahead of now within which an appointment
// counts as due for a reminder.
const DefaultLookahead = 30 * time.Minute

const reminderSubject = "Upcoming Appointment"

type Service struct {
	repo      repository.AppointmentRepository
	emailSvc  email.Service
	logger    *logger.Logger
	metrics   *metrics.Metrics
	lookahead time.Duration
}

func NewService(repo repository.AppointmentRepository, emailSvc email.Service, l *logger.Logger, m *metrics.Metrics, lookahead time.Duration) *Service {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Service{
		repo:      repo,
		emailSvc:  emailSvc,
		logger:    l,
		metrics:   m,
		lookahead: lookahead,
	}
}

// RunOnce scans [now, now+lookahead] for booked, un-notified appointments
// and reminds both participants, then flips the notified flag. An
// appointment is only marked after both sends succeed, so a failed send is
// retried on the next cycle (at-least-once; a crash between send and mark
// can produce a duplicate, which is accepted). One appointment's failure
// never stops the rest of the batch.
func (s *Service) RunOnce(ctx context.Context, now time.Time) error {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.ReminderCycleDuration)
		defer timer.ObserveDuration()
		defer s.metrics.ReminderCycles.Inc()
	}

	due, err := s.repo.FindDueUnnotified(ctx, now, now.Add(s.lookahead))
	if err != nil {
		return fmt.Errorf("failed to find due appointments: %w", err)
	}

	for _, apt := range due {
		if err := s.remind(ctx, apt); err != nil {
			s.logError(err, apt)
			continue
		}

		if err := s.repo.MarkNotified(ctx, apt.ID); err != nil {
			// The reminder went out but the flag write failed; the next
			// cycle will resend. Accepted duplicate risk.
			s.logError(fmt.Errorf("failed to mark notified: %w", err), apt)
		}
	}

	return nil
}

// remind sends to the patient first, then the doctor. Either failure leaves
// the appointment un-notified.
func (s *Service) remind(ctx context.Context, apt *model.AppointmentReminder) error {
	body := fmt.Sprintf("You have an appointment at %s.", apt.StartTime.Format(time.RFC1123))

	if err := s.emailSvc.SendCustom(ctx, apt.PatientEmail, reminderSubject, body); err != nil {
		s.countFailed()
		return fmt.Errorf("failed to notify patient: %w", err)
	}
	s.countSent()

	if err := s.emailSvc.SendCustom(ctx, apt.DoctorEmail, reminderSubject, body); err != nil {
		s.countFailed()
		return fmt.Errorf("failed to notify doctor: %w", err)
	}
	s.countSent()

	return nil
}

func (s *Service) countSent() {
	if s.metrics != nil {
		s.metrics.NotificationsSent.Inc()
	}
}

func (s *Service) countFailed() {
	if s.metrics != nil {
		s.metrics.NotificationsFailed.Inc()
	}
}

func (s *Service) logError(err error, apt *model.AppointmentReminder) {
	if s.logger != nil {
		s.logger.Error(err, "reminder failed",
			"appointment_id", apt.ID.String(),
			"start_time", apt.StartTime)
	}
}
