package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/clinic-api/internal/model"
	apperrors "github.com/medidesk/clinic-api/pkg/errors"
)

func (r *doctorRepository) Create(ctx context.Context, tx *sqlx.Tx, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (id, user_id, first_name, last_name, specialty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query,
			doctor.ID, doctor.UserID, doctor.FirstName, doctor.LastName,
			doctor.Specialty, doctor.CreatedAt, doctor.UpdatedAt)
	} else {
		_, err = r.db.ExecContext(ctx, query,
			doctor.ID, doctor.UserID, doctor.FirstName, doctor.LastName,
			doctor.Specialty, doctor.CreatedAt, doctor.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, user_id, first_name, last_name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, user_id, first_name, last_name, specialty, created_at, updated_at
		FROM doctors
		WHERE user_id = $1
	`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor by user id: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET first_name = $1, last_name = $2, specialty = $3, updated_at = $4
		WHERE id = $5
	`
	doctor.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		doctor.FirstName, doctor.LastName, doctor.Specialty, doctor.UpdatedAt, doctor.ID)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("doctor", nil)
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `
		SELECT id, user_id, first_name, last_name, specialty, created_at, updated_at
		FROM doctors
		ORDER BY last_name ASC, first_name ASC
	`
	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
