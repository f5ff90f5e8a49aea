package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Appointment occupies the half-open interval [StartTime, EndTime) on a
// doctor's calendar. Appointments are never physically deleted; cancellation
// is a status transition and frees the slot.
type Appointment struct {
	Base
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	StartTime    time.Time         `db:"start_time" json:"start_time"`
	EndTime      time.Time         `db:"end_time" json:"end_time"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Notified     bool              `db:"notified" json:"notified"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type BookAppointmentRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID  uuid.UUID `json:"doctor_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required,future"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// AppointmentReminder joins a due appointment with the contact addresses of
// both participants, so the reminder cycle does one read per window.
type AppointmentReminder struct {
	Appointment
	PatientEmail string `db:"patient_email" json:"patient_email"`
	DoctorEmail  string `db:"doctor_email" json:"doctor_email"`
}
