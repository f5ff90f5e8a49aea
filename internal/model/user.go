package model

import "time"

// User roles
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// User represents an account holder. Every doctor and patient wraps
// exactly one user.
type User struct {
	Base
	Email        string `json:"email" db:"email"`
	Password     string `json:"password,omitempty" db:"-"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`
}

// SignupRequest carries account creation parameters. Specialty is required
// for doctors, birth date for patients.
type SignupRequest struct {
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required,min=8"`
	Role      string     `json:"role" binding:"required,oneof=doctor patient"`
	FirstName string     `json:"first_name" binding:"required"`
	LastName  string     `json:"last_name" binding:"required"`
	Specialty string     `json:"specialty"`
	BirthDate *time.Time `json:"birth_date"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
