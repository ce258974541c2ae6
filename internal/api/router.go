package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sehatclinic/booking-api/internal/booking"
)

type RouterConfig struct {
	Service   *booking.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	log := cfg.Logger

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(NewLoggingMiddleware(log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public doctor directory and slot browsing
	r.Get("/specializations", listSpecializationsHandler(cfg.Service, log))
	r.Get("/doctors", listDoctorsHandler(cfg.Service, log))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Service, log))
	r.Get("/doctors/{id}/schedule", getScheduleHandler(cfg.Service, log))
	r.Get("/doctors/{id}/slots", getSlotsHandler(cfg.Service, log))

	// Authenticated booking endpoints
	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(cfg.JWTSecret))

		pr.Put("/doctors/{id}/schedule", saveScheduleHandler(cfg.Service, log))

		pr.Post("/appointments", bookAppointmentHandler(cfg.Service, log))
		pr.Get("/appointments", listAppointmentsHandler(cfg.Service, log))
		pr.Get("/appointments/today", todayAppointmentsHandler(cfg.Service, log))
		pr.Get("/appointments/history", patientHistoryHandler(cfg.Service, log))
		pr.Get("/appointments/{id}", getAppointmentHandler(cfg.Service, log))
		pr.Put("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service, log))
		pr.Put("/appointments/{id}/status", updateStatusHandler(cfg.Service, log))
		pr.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Service, log))
	})

	return r
}
