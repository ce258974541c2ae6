package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sehatclinic/booking-api/internal/booking"
	"github.com/sehatclinic/booking-api/internal/schedule"
)

var validate = validator.New()

type BookAppointmentRequest struct {
	DoctorID string  `json:"doctor_id" validate:"required,uuid"`
	Date     string  `json:"date" validate:"required"`
	Time     string  `json:"time" validate:"required"`
	Reason   *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type RescheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed"`
}

type SaveScheduleRequest struct {
	Schedule schedule.Weekly `json:"schedule" validate:"required"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.Date,
		Time:      a.Time,
		Status:    string(a.Status),
		Reason:    a.Reason,
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
	}
}

func toAppointmentResponses(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

type TodayResponse struct {
	Date         string                `json:"date"`
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

type HistoryResponse struct {
	Upcoming      []AppointmentResponse `json:"upcoming"`
	Past          []AppointmentResponse `json:"past"`
	TotalUpcoming int                   `json:"total_upcoming"`
	TotalPast     int                   `json:"total_past"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	LicenseNumber  *string   `json:"license_number,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Bio            *string   `json:"bio,omitempty"`
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		LicenseNumber:  d.LicenseNumber,
		Phone:          d.Phone,
		Bio:            d.Bio,
	}
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
}

type SpecializationsResponse struct {
	Specializations []string `json:"specializations"`
}

type ScheduleResponse struct {
	DoctorID uuid.UUID       `json:"doctor_id"`
	Schedule schedule.Weekly `json:"schedule"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID         `json:"doctor_id"`
	Date     string            `json:"date"`
	Slots    []booking.TimeSlot `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
