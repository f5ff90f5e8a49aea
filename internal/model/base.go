package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identifiable is implemented by every entity that carries an identity.
// Callers that need an entity's id should go through this accessor rather
// than inspecting fields.
type Identifiable interface {
	Identity() uuid.UUID
}

func (b Base) Identity() uuid.UUID {
	return b.ID
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}
