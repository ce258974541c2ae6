package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehatclinic/booking-api/internal/booking"
)

func listDoctorsHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context(), r.URL.Query().Get("specialization"))
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, DoctorListResponse{Doctors: resp, Total: len(resp)})
	}
}

func listSpecializationsHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specs, err := svc.Specializations(r.Context())
		if err != nil {
			handleServiceError(w, log, err)
			return
		}
		if specs == nil {
			specs = []string{}
		}
		writeJSON(w, http.StatusOK, SpecializationsResponse{Specializations: specs})
	}
}

func getDoctorHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		doctor, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

func getScheduleHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		weekly, err := svc.GetWeeklySchedule(r.Context(), id)
		if err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, ScheduleResponse{DoctorID: id, Schedule: weekly})
	}
}

func saveScheduleHandler(svc *booking.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok || ident.Role != RoleDoctor {
			writeError(w, http.StatusForbidden, "forbidden", "only doctors can update a schedule")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		var req SaveScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		if err := svc.SaveWeeklySchedule(r.Context(), id, ident.UserID, req.Schedule); err != nil {
			handleServiceError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "schedule updated"})
	}
}
