package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	DoctorID    uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	PatientName string            `json:"patient_name" db:"patient_name"`
	Age         int               `json:"age" db:"age"`
	Phone       string            `json:"phone" db:"phone"`
	Date        string            `json:"date" db:"date"`
	Time        string            `json:"time" db:"time"`
	Status      AppointmentStatus `json:"status" db:"status"`
	IsAvailable bool              `json:"is_available" db:"is_available"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

type AppointmentStats struct {
	TotalDoctors          int64 `json:"totalDoctors"`
	TotalAppointments     int64 `json:"totalAppointments"`
	BookedAppointments    int64 `json:"bookedAppointments"`
	CancelledAppointments int64 `json:"cancelledAppointments"`
}
