package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehatclinic/booking-api/internal/config"
	"github.com/sehatclinic/booking-api/internal/schedule"
)

var (
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime = errors.New("invalid time, expected HH:MM")

	// ErrSlotNotOffered guards against stale client state or forged
	// requests: the requested time is not a candidate the doctor's
	// template produces for that date.
	ErrSlotNotOffered = errors.New("slot is not offered on that date")

	ErrForbidden         = errors.New("requester may not act on this appointment")
	ErrInvalidState      = errors.New("appointment status does not allow this action")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ScheduleCache is an optional read-through cache in front of the
// schedule store. A nil cache disables caching.
type ScheduleCache interface {
	Get(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, bool)
	Set(ctx context.Context, doctorID uuid.UUID, w schedule.Weekly)
	Invalidate(ctx context.Context, doctorID uuid.UUID)
}

// Service answers "what slots are bookable for doctor D on date X" and
// validates and applies booking, reschedule, cancel and status changes.
// Candidate slots are always recomputed server side; a client-supplied
// availability flag is never trusted.
type Service struct {
	repo      Repository
	schedules schedule.Repository
	cache     ScheduleCache
	cfg       config.Config
	log       zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, schedules schedule.Repository, cache ScheduleCache, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		schedules: schedules,
		cache:     cache,
		cfg:       cfg,
		log:       log.With().Str("component", "booking").Logger(),
		now:       time.Now,
	}
}

// -- Slots --

// GetBookableSlots derives the candidate slots for (doctor, date) and
// annotates each with whether an active appointment occupies it. A day
// the doctor is off, or a date fully in the past, yields an empty list
// rather than an error.
func (s *Service) GetBookableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]TimeSlot, error) {
	day, err := schedule.ParseDate(date, s.cfg.Location)
	if err != nil {
		return nil, ErrInvalidDate
	}

	weekly, err := s.loadWeekly(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	candidates := Candidates(weekly[schedule.DayNameOf(day)], day, s.cfg.SlotDuration, s.now().In(s.cfg.Location))
	if len(candidates) == 0 {
		return []TimeSlot{}, nil
	}

	active, err := s.repo.ActiveTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load active times: %w", err)
	}
	taken := make(map[string]bool, len(active))
	for _, t := range active {
		taken[t] = true
	}

	slots := make([]TimeSlot, 0, len(candidates))
	for _, t := range candidates {
		slots = append(slots, TimeSlot{Time: t, Available: !taken[t]})
	}
	return slots, nil
}

// -- Booking --

// Book reserves (doctor, date, time) for a patient as a pending
// appointment. The slot must be one the schedule currently offers;
// occupancy is settled by the ledger's atomic insert.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, date, timeOfDay string, reason *string) (*Appointment, error) {
	date, timeOfDay, err := s.canonicalSlot(date, timeOfDay)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if err := s.checkOffered(ctx, doctorID, date, timeOfDay); err != nil {
		return nil, err
	}

	appt, err := s.repo.Reserve(ctx, doctorID, patientID, date, timeOfDay, reason)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctorID.String()).
		Str("date", date).
		Str("time", timeOfDay).
		Msg("appointment booked")

	return appt, nil
}

// Reschedule moves the requester's own pending or confirmed appointment
// to a new slot and resets it to pending. On any failure, including a
// lost race for the destination slot, the original appointment is
// unchanged.
func (s *Service) Reschedule(ctx context.Context, id, requesterID uuid.UUID, newDate, newTime string) (*Appointment, error) {
	newDate, newTime, err := s.canonicalSlot(newDate, newTime)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != requesterID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidState
	}

	if err := s.checkOffered(ctx, appt.DoctorID, newDate, newTime); err != nil {
		return nil, err
	}

	moved, err := s.repo.Move(ctx, id, newDate, newTime)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("date", newDate).
		Str("time", newTime).
		Msg("appointment rescheduled")

	return moved, nil
}

// Cancel releases the slot. Allowed to the appointment's patient and its
// assigned doctor, and only while the appointment is still active.
func (s *Service) Cancel(ctx context.Context, id, requesterID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.PatientID != requesterID && appt.DoctorID != requesterID {
		return ErrForbidden
	}
	if appt.Status.Terminal() {
		return ErrInvalidState
	}

	if err := s.repo.Release(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return nil
}

// AdvanceStatus moves an appointment along pending -> confirmed ->
// completed. Only the assigned doctor may advance; skipping a step,
// reversing, or leaving a terminal state fails ErrInvalidTransition.
func (s *Service) AdvanceStatus(ctx context.Context, id, doctorID uuid.UUID, newStatus Status) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, ErrForbidden
	}

	var from Status
	switch newStatus {
	case StatusConfirmed:
		from = StatusPending
	case StatusCompleted:
		from = StatusConfirmed
	default:
		return nil, ErrInvalidTransition
	}
	if appt.Status != from {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, newStatus)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The status changed under us between the read and the
			// conditional update.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("advance status: %w", err)
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("status", string(newStatus)).
		Msg("appointment status advanced")

	return updated, nil
}

// -- Listing --

// GetAppointment returns one appointment, visible only to its patient
// and its doctor.
func (s *Service) GetAppointment(ctx context.Context, id, requesterID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != requesterID && appt.DoctorID != requesterID {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListForUser scopes the listing by the requester's role: patients see
// their own appointments, doctors the ones assigned to them.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, role string, status *Status, date *string) ([]Appointment, error) {
	f := ListFilter{Status: status, Date: date}
	switch role {
	case "patient":
		f.PatientID = &userID
	case "doctor":
		f.DoctorID = &userID
	default:
		return nil, ErrForbidden
	}
	return s.repo.List(ctx, f)
}

// TodayForDoctor lists the doctor's appointments for the current clinic
// date, earliest first.
func (s *Service) TodayForDoctor(ctx context.Context, doctorID uuid.UUID) (string, []Appointment, error) {
	today := schedule.FormatDate(s.now().In(s.cfg.Location))
	appts, err := s.repo.List(ctx, ListFilter{DoctorID: &doctorID, Date: &today, Ascending: true})
	return today, appts, err
}

// HistoryForPatient splits the patient's appointments into upcoming
// (today or later and still pending/confirmed) and past.
func (s *Service) HistoryForPatient(ctx context.Context, patientID uuid.UUID) (upcoming, past []Appointment, err error) {
	appts, err := s.repo.List(ctx, ListFilter{PatientID: &patientID})
	if err != nil {
		return nil, nil, err
	}

	today := schedule.FormatDate(s.now().In(s.cfg.Location))
	upcoming = []Appointment{}
	past = []Appointment{}
	for _, a := range appts {
		if a.Date >= today && (a.Status == StatusPending || a.Status == StatusConfirmed) {
			upcoming = append(upcoming, a)
		} else {
			past = append(past, a)
		}
	}
	return upcoming, past, nil
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context, specialization string) ([]Doctor, error) {
	return s.repo.ListDoctors(ctx, specialization)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

// Specializations feeds the directory's filter dropdown.
func (s *Service) Specializations(ctx context.Context) ([]string, error) {
	return s.repo.ListSpecializations(ctx)
}

// -- Weekly schedule --

// GetWeeklySchedule returns the doctor's template with every weekday
// present and inconsistent break windows cleared.
func (s *Service) GetWeeklySchedule(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, error) {
	return s.loadWeekly(ctx, doctorID)
}

// SaveWeeklySchedule validates and overwrites the doctor's template
// wholesale. Only the doctor themselves may save it.
func (s *Service) SaveWeeklySchedule(ctx context.Context, doctorID, requesterID uuid.UUID, w schedule.Weekly) error {
	if doctorID != requesterID {
		return ErrForbidden
	}
	if err := w.Validate(); err != nil {
		return err
	}

	if err := s.schedules.Save(ctx, doctorID, w.Normalized()); err != nil {
		if errors.Is(err, schedule.ErrDoctorNotFound) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("save schedule: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, doctorID)
	}

	s.log.Info().Str("doctor_id", doctorID.String()).Msg("weekly schedule saved")
	return nil
}

// -- internals --

func (s *Service) canonicalSlot(date, timeOfDay string) (string, string, error) {
	d, err := schedule.ParseDate(date, s.cfg.Location)
	if err != nil {
		return "", "", ErrInvalidDate
	}
	minutes, err := schedule.ParseClock(timeOfDay)
	if err != nil {
		return "", "", ErrInvalidTime
	}
	return schedule.FormatDate(d), schedule.FormatClock(minutes), nil
}

// checkOffered recomputes the candidate set for (doctor, date) and
// requires the requested time to be in it.
func (s *Service) checkOffered(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string) error {
	day, err := schedule.ParseDate(date, s.cfg.Location)
	if err != nil {
		return ErrInvalidDate
	}

	weekly, err := s.loadWeekly(ctx, doctorID)
	if err != nil {
		return err
	}

	for _, t := range Candidates(weekly[schedule.DayNameOf(day)], day, s.cfg.SlotDuration, s.now().In(s.cfg.Location)) {
		if t == timeOfDay {
			return nil
		}
	}
	return ErrSlotNotOffered
}

func (s *Service) loadWeekly(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, error) {
	if s.cache != nil {
		if w, ok := s.cache.Get(ctx, doctorID); ok {
			return w, nil
		}
	}

	w, err := s.schedules.GetByDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, schedule.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	w = w.Normalized()

	if s.cache != nil {
		s.cache.Set(ctx, doctorID, w)
	}
	return w, nil
}
