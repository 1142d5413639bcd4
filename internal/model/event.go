package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventDoctorCreated      = "doctor.created"
	EventDoctorDeleted      = "doctor.deleted"
	EventIdentityOrphaned   = "identity.orphaned"
	EventAppointmentDeleted = "appointment.deleted"
)

// Event is a domain event published to the broker.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type DoctorEventPayload struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	// Reason is set on identity.orphaned.
	Reason string `json:"reason,omitempty"`
	// AppointmentsDeleted is set on doctor.deleted.
	AppointmentsDeleted int64 `json:"appointments_deleted,omitempty"`
}
