package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/clinic-api/internal/model"
	apperrors "github.com/medidesk/clinic-api/pkg/errors"
)

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_time, end_time,
			   status, notified, cancel_reason, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// CheckConflicts reports whether any booked appointment for the doctor
// overlaps [startTime, endTime). Half-open semantics: an appointment ending
// exactly at startTime does not conflict.
func (r *appointmentRepository) CheckConflicts(ctx context.Context, doctorID uuid.UUID, startTime, endTime time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND status = 'booked'
			AND start_time < $3
			AND $2 < end_time
		)
	`
	var hasConflict bool
	err := r.db.GetContext(ctx, &hasConflict, query, doctorID, startTime, endTime)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return hasConflict, nil
}

// CreateIfSlotFree re-checks the slot and inserts inside one transaction,
// holding a per-doctor advisory lock so that two concurrent bookings for the
// same doctor serialize at the storage layer as well. Returns false when the
// slot was taken; no row is written in that case.
func (r *appointmentRepository) CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		appointment.DoctorID.String(),
	); err != nil {
		return false, fmt.Errorf("failed to acquire doctor lock: %w", err)
	}

	var hasConflict bool
	err = tx.GetContext(ctx, &hasConflict, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND status = 'booked'
			AND start_time < $3
			AND $2 < end_time
		)
	`, appointment.DoctorID, appointment.StartTime, appointment.EndTime)
	if err != nil {
		return false, fmt.Errorf("failed to re-check conflicts: %w", err)
	}
	if hasConflict {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, start_time, end_time,
			status, notified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notified,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit booking: %w", err)
	}
	return true, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET start_time = $1, end_time = $2, status = $3,
			cancel_reason = $4, updated_at = $5
		WHERE id = $6
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.CancelReason,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	return nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_time, end_time,
			   status, notified, cancel_reason, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY start_time ASC, id ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_time, end_time,
			   status, notified, cancel_reason, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time ASC, id ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

// FindDueUnnotified returns booked, not yet notified appointments starting
// inside [windowStart, windowEnd], joined with both participants' contact
// addresses.
func (r *appointmentRepository) FindDueUnnotified(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.AppointmentReminder, error) {
	query := `
		SELECT a.id, a.patient_id, a.doctor_id, a.start_time, a.end_time,
			   a.status, a.notified, a.cancel_reason, a.created_at, a.updated_at,
			   pu.email AS patient_email,
			   du.email AS doctor_email
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users pu ON pu.id = p.user_id
		JOIN doctors d ON d.id = a.doctor_id
		JOIN users du ON du.id = d.user_id
		WHERE a.status = 'booked'
		AND a.notified = false
		AND a.start_time >= $1
		AND a.start_time <= $2
		ORDER BY a.start_time ASC, a.id ASC
	`
	var reminders []*model.AppointmentReminder
	err := r.db.SelectContext(ctx, &reminders, query, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to find due appointments: %w", err)
	}
	return reminders, nil
}

func (r *appointmentRepository) MarkNotified(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET notified = true, updated_at = $1
		WHERE id = $2
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark appointment notified: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	return nil
}
