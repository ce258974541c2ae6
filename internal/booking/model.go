package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether an appointment in this status occupies its slot.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	LicenseNumber  *string
	Phone          *string
	Bio            *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is one booked slot. Date is "YYYY-MM-DD" and Time is
// "HH:MM", both in the clinic's local time zone.
type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	Time      string
	Status    Status
	Reason    *string
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeSlot is a candidate slot annotated with its booking state. It is
// derived per request and never persisted.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
