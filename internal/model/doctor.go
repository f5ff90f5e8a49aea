package model

import "github.com/google/uuid"

// Doctor is the clinical profile owned by a user account.
type Doctor struct {
	Base
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Specialty string    `json:"specialty" db:"specialty"`
}

type UpdateDoctorRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Specialty *string `json:"specialty"`
}
