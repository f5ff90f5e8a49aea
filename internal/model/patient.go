package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the profile owned by a user account with the patient role.
type Patient struct {
	Base
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	BirthDate time.Time `json:"birth_date" db:"birth_date"`
}

type UpdatePatientRequest struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	BirthDate *time.Time `json:"birth_date"`
}
