package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/medidesk/clinic-api/internal/model"
	"github.com/medidesk/clinic-api/internal/repository"
	"github.com/medidesk/clinic-api/pkg/errors"
	"github.com/medidesk/clinic-api/pkg/logger"
	"github.com/medidesk/clinic-api/pkg/messaging"
	"github.com/medidesk/clinic-api/pkg/metrics"
)

const (
	profileCacheTTL     = 5 * time.Minute
	profileCacheCleanup = 10 * time.Minute
)

type Service struct {
	repo        repository.AppointmentRepository
	doctorRepo  repository.DoctorRepository
	patientRepo repository.PatientRepository
	broker      messaging.Broker
	metrics     *metrics.Metrics
	logger      *logger.Logger
	locks       *doctorLocker
	profiles    *cache.Cache
}

func NewService(
	repo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	broker messaging.Broker,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		doctorRepo:  doctorRepo,
		patientRepo: patientRepo,
		broker:      broker,
		metrics:     m,
		logger:      l,
		locks:       newDoctorLocker(),
		profiles:    cache.New(profileCacheTTL, profileCacheCleanup),
	}
}

// HasConflict reports whether any booked appointment for the doctor overlaps
// the half-open interval [start, end). Callers must reject zero-length or
// inverted intervals before calling; this is a pure read.
func (s *Service) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	return s.repo.CheckConflicts(ctx, doctorID, start, end)
}

// Book checks the slot and creates the appointment. The check and the insert
// are serialized per doctor: an in-process lock covers concurrent callers in
// this instance, and the repository re-checks inside its transaction under a
// per-doctor advisory lock for everything else. Two concurrent bookings for
// the same doctor and overlapping intervals cannot both succeed.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, start, end time.Time) (*model.Appointment, error) {
	if err := validateBooking(patientID, doctorID, start, end); err != nil {
		s.countBooking(metrics.OutcomeInvalid)
		return nil, err
	}

	unlock := s.locks.Lock(doctorID)
	defer unlock()

	hasConflict, err := s.repo.CheckConflicts(ctx, doctorID, start, end)
	if err != nil {
		s.countBooking(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if hasConflict {
		s.countBooking(metrics.OutcomeConflict)
		return nil, errors.NewConflict("the requested slot overlaps an existing appointment")
	}

	now := time.Now()
	apt := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Status:    model.AppointmentStatusBooked,
		Notified:  false,
	}

	created, err := s.repo.CreateIfSlotFree(ctx, apt)
	if err != nil {
		s.countBooking(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	if !created {
		// Lost the race to a booking from another instance.
		s.countBooking(metrics.OutcomeConflict)
		return nil, errors.NewConflict("the requested slot overlaps an existing appointment")
	}

	s.countBooking(metrics.OutcomeBooked)
	s.publishEvent(ctx, messaging.EventAppointmentBooked, apt)
	return apt, nil
}

// Cancel transitions a booked appointment to cancelled. The slot becomes
// bookable again; the row is never deleted.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get appointment: %w", err)
	}

	if apt.Status == model.AppointmentStatusCancelled {
		return errors.NewValidation("appointment is already cancelled")
	}
	if apt.Status == model.AppointmentStatusCompleted {
		return errors.NewValidation("cannot cancel a completed appointment")
	}

	apt.Status = model.AppointmentStatusCancelled
	if reason != "" {
		apt.CancelReason = &reason
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}

	s.publishEvent(ctx, messaging.EventAppointmentCancelled, apt)
	return nil
}

// Complete marks a booked appointment as completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get appointment: %w", err)
	}

	if apt.Status != model.AppointmentStatusBooked {
		return errors.NewValidation("only booked appointments can be completed")
	}

	apt.Status = model.AppointmentStatusCompleted
	if err := s.repo.Update(ctx, apt); err != nil {
		return fmt.Errorf("failed to complete appointment: %w", err)
	}
	return nil
}

// AppointmentsFor resolves the caller's profile by user id and role and
// returns the matching appointments. An unknown role or a user without the
// corresponding profile sees an empty list, not an error.
func (s *Service) AppointmentsFor(ctx context.Context, userID uuid.UUID, role string) ([]*model.Appointment, error) {
	switch role {
	case model.RoleDoctor:
		doctorID, ok, err := s.resolveProfile(ctx, userID, role)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []*model.Appointment{}, nil
		}
		return s.repo.ListByDoctor(ctx, doctorID)
	case model.RolePatient:
		patientID, ok, err := s.resolveProfile(ctx, userID, role)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []*model.Appointment{}, nil
		}
		return s.repo.ListByPatient(ctx, patientID)
	default:
		return []*model.Appointment{}, nil
	}
}

// resolveProfile maps a user id to its doctor or patient profile id. Results
// are cached; a missing profile reports ok=false rather than an error.
func (s *Service) resolveProfile(ctx context.Context, userID uuid.UUID, role string) (uuid.UUID, bool, error) {
	key := role + ":" + userID.String()
	if cached, found := s.profiles.Get(key); found {
		return cached.(uuid.UUID), true, nil
	}

	var profile model.Identifiable
	var err error
	switch role {
	case model.RoleDoctor:
		profile, err = s.doctorRepo.GetByUserID(ctx, userID)
	case model.RolePatient:
		profile, err = s.patientRepo.GetByUserID(ctx, userID)
	}
	if err != nil {
		if errors.IsNotFound(err) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to resolve %s profile: %w", role, err)
	}

	id := profile.Identity()
	s.profiles.Set(key, id, cache.DefaultExpiration)
	return id, true, nil
}

func validateBooking(patientID, doctorID uuid.UUID, start, end time.Time) error {
	if patientID == uuid.Nil {
		return errors.NewValidation("patient ID is required")
	}
	if doctorID == uuid.Nil {
		return errors.NewValidation("doctor ID is required")
	}
	if !end.After(start) {
		return errors.NewValidation("appointment end must be after start")
	}
	return nil
}

func (s *Service) countBooking(outcome string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}

// publishEvent notifies downstream consumers of a lifecycle change. Failures
// are logged and never affect the booking outcome.
func (s *Service) publishEvent(ctx context.Context, eventType string, apt *model.Appointment) {
	if s.broker == nil {
		return
	}
	event := messaging.AppointmentEvent{
		Type:          eventType,
		AppointmentID: apt.ID.String(),
		DoctorID:      apt.DoctorID.String(),
		PatientID:     apt.PatientID.String(),
		StartTime:     apt.StartTime.Format(time.RFC3339),
		EndTime:       apt.EndTime.Format(time.RFC3339),
	}
	if err := s.broker.Publish(ctx, messaging.ChannelAppointments, event); err != nil && s.logger != nil {
		s.logger.Error(err, "failed to publish appointment event",
			"event_type", eventType, "appointment_id", apt.ID.String())
	}
}
