package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels for appointment lifecycle events
const (
	ChannelAppointments = "appointments"
)

// AppointmentEvent is published on booking and cancellation. Delivery is
// best-effort; consumers must tolerate gaps.
type AppointmentEvent struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentCancelled = "appointment.cancelled"
)
