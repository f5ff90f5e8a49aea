package model

import (
	"github.com/google/uuid"
)

// MedicalRecord is a free-form note attached to a patient.
type MedicalRecord struct {
	Base
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Title     string    `db:"title" json:"title"`
	Notes     string    `db:"notes" json:"notes"`
}

type CreateMedicalRecordRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" binding:"required"`
	Title     string    `json:"title" binding:"required,max=200"`
	Notes     string    `json:"notes" binding:"max=5000"`
}
