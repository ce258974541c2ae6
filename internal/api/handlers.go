package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehatclinic/booking-api/internal/booking"
)

func getSlotsHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		slots, err := svc.GetBookableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{DoctorID: doctorID, Date: date, Slots: slots})
	}
}

func bookAppointmentHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok || ident.Role != RolePatient {
			writeError(w, http.StatusForbidden, "forbidden", "only patients can book appointments")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		appt, err := svc.Book(r.Context(), doctorID, ident.UserID, req.Date, req.Time, req.Reason)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := IdentityFromContext(r.Context())

		var status *booking.Status
		if v := r.URL.Query().Get("status"); v != "" {
			st := booking.Status(v)
			if !booking.ValidStatus(st) {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown status filter")
				return
			}
			status = &st
		}

		var date *string
		if v := r.URL.Query().Get("date"); v != "" {
			date = &v
		}

		appts, err := svc.ListForUser(r.Context(), ident.UserID, ident.Role, status, date)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		resp := toAppointmentResponses(appts)
		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: resp, Total: len(resp)})
	}
}

func getAppointmentHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := IdentityFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id, ident.UserID)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := IdentityFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, ident.UserID, req.Date, req.Time)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := IdentityFromContext(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), id, ident.UserID); err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "appointment cancelled"})
	}
}

func updateStatusHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok || ident.Role != RoleDoctor {
			writeError(w, http.StatusForbidden, "forbidden", "only doctors can update appointment status")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		appt, err := svc.AdvanceStatus(r.Context(), id, ident.UserID, booking.Status(req.Status))
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func todayAppointmentsHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok || ident.Role != RoleDoctor {
			writeError(w, http.StatusForbidden, "forbidden", "only doctors can view today's schedule")
			return
		}

		date, appts, err := svc.TodayForDoctor(r.Context(), ident.UserID)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		resp := toAppointmentResponses(appts)
		writeJSON(w, http.StatusOK, TodayResponse{Date: date, Appointments: resp, Total: len(resp)})
	}
}

func patientHistoryHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok || ident.Role != RolePatient {
			writeError(w, http.StatusForbidden, "forbidden", "only patients can view their history")
			return
		}

		upcoming, past, err := svc.HistoryForPatient(r.Context(), ident.UserID)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		up := toAppointmentResponses(upcoming)
		pa := toAppointmentResponses(past)
		writeJSON(w, http.StatusOK, HistoryResponse{
			Upcoming:      up,
			Past:          pa,
			TotalUpcoming: len(up),
			TotalPast:     len(pa),
		})
	}
}
