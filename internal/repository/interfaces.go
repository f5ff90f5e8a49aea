package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository is the persistence port for the scheduling core.
	// CreateIfSlotFree must make the conflict re-check and the insert atomic
	// with respect to concurrent bookings for the same doctor.
	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		CheckConflicts(ctx context.Context, doctorID uuid.UUID, startTime, endTime time.Time) (bool, error)
		CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) (bool, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		FindDueUnnotified(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.AppointmentReminder, error)
		MarkNotified(ctx context.Context, id uuid.UUID) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context) ([]*model.Patient, error)
	}

	UserRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}
)
