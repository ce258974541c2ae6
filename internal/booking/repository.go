package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is the loser's view of the per-slot race: another
	// active appointment already occupies (doctor, date, time).
	ErrSlotTaken = errors.New("slot already booked")
)

// ListFilter narrows appointment listings. Nil fields are ignored.
type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *Status
	Date      *string

	// Ascending orders by date then time; the default is newest first.
	Ascending bool
}

// Repository is the booking ledger plus the doctor/patient lookups the
// service needs. Reserve and Move are atomic per (doctor, date, time):
// the store's partial unique index over active appointments guarantees
// that under concurrent attempts exactly one wins and the rest see
// ErrSlotTaken. No application-level locking is involved.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, specialization string) ([]Doctor, error)

	// ListSpecializations returns the distinct non-empty specializations
	// across all doctors, sorted, for the directory filter.
	ListSpecializations(ctx context.Context) ([]string, error)

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	// ActiveTimes returns the occupied slot times for a doctor on a date.
	ActiveTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)

	// Reserve inserts a pending appointment, or fails ErrSlotTaken.
	Reserve(ctx context.Context, doctorID, patientID uuid.UUID, date, timeOfDay string, reason *string) (*Appointment, error)

	// Release marks a pending or confirmed appointment cancelled,
	// freeing its slot. A row that left the active states between the
	// caller's read and this write yields ErrInvalidState.
	Release(ctx context.Context, id uuid.UUID) error

	// Move points a pending or confirmed appointment at a new slot and
	// resets it to pending in a single step. ErrSlotTaken when the
	// destination is occupied, ErrInvalidState when the row is no longer
	// active; either way the row is untouched.
	Move(ctx context.Context, id uuid.UUID, newDate, newTime string) (*Appointment, error)

	// UpdateStatus transitions from -> to conditionally; a row no longer
	// in the from status yields ErrAppointmentNotFound.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
}
