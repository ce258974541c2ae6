package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatclinic/booking-api/internal/config"
	"github.com/sehatclinic/booking-api/internal/schedule"
)

// memRepo is an in-memory Repository. Reserve and Move take a single
// lock around check-and-insert, giving the same per-slot atomicity the
// store's partial unique index provides.
type memRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]Doctor
	patients map[uuid.UUID]Patient
	appts    map[uuid.UUID]Appointment
	active   map[string]uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]Doctor),
		patients: make(map[uuid.UUID]Patient),
		appts:    make(map[uuid.UUID]Appointment),
		active:   make(map[string]uuid.UUID),
	}
}

func slotKey(doctorID uuid.UUID, date, timeOfDay string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date, timeOfDay)
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepo) ListDoctors(_ context.Context, specialization string) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Doctor
	for _, d := range m.doctors {
		if specialization == "" || d.Specialization == specialization {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) ListSpecializations(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, d := range m.doctors {
		if d.Specialization != "" && !seen[d.Specialization] {
			seen[d.Specialization] = true
			out = append(out, d.Specialization)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appts {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && a.Date != *f.Date {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		ki := out[i].Date + out[i].Time
		kj := out[j].Date + out[j].Time
		if f.Ascending {
			return ki < kj
		}
		return ki > kj
	})
	return out, nil
}

func (m *memRepo) ActiveTimes(_ context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.active {
		a := m.appts[id]
		if a.DoctorID == doctorID && a.Date == date {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

func (m *memRepo) Reserve(_ context.Context, doctorID, patientID uuid.UUID, date, timeOfDay string, reason *string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey(doctorID, date, timeOfDay)
	if _, taken := m.active[key]; taken {
		return nil, ErrSlotTaken
	}

	a := Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      date,
		Time:      timeOfDay,
		Status:    StatusPending,
		Reason:    reason,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.appts[a.ID] = a
	m.active[key] = a.ID
	return &a, nil
}

func (m *memRepo) Release(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || (a.Status != StatusPending && a.Status != StatusConfirmed) {
		return ErrInvalidState
	}
	delete(m.active, slotKey(a.DoctorID, a.Date, a.Time))
	a.Status = StatusCancelled
	m.appts[id] = a
	return nil
}

func (m *memRepo) Move(_ context.Context, id uuid.UUID, newDate, newTime string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || (a.Status != StatusPending && a.Status != StatusConfirmed) {
		return nil, ErrInvalidState
	}

	newKey := slotKey(a.DoctorID, newDate, newTime)
	if holder, taken := m.active[newKey]; taken && holder != id {
		return nil, ErrSlotTaken
	}

	delete(m.active, slotKey(a.DoctorID, a.Date, a.Time))
	a.Date = newDate
	a.Time = newTime
	a.Status = StatusPending
	m.appts[id] = a
	m.active[newKey] = id
	return &a, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	m.appts[id] = a
	return &a, nil
}

type memSchedules struct {
	mu       sync.Mutex
	byDoctor map[uuid.UUID]schedule.Weekly
}

func newMemSchedules() *memSchedules {
	return &memSchedules{byDoctor: make(map[uuid.UUID]schedule.Weekly)}
}

func (m *memSchedules) GetByDoctor(_ context.Context, doctorID uuid.UUID) (schedule.Weekly, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byDoctor[doctorID]
	if !ok {
		return nil, schedule.ErrDoctorNotFound
	}
	return w, nil
}

func (m *memSchedules) Save(_ context.Context, doctorID uuid.UUID, w schedule.Weekly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byDoctor[doctorID]; !ok {
		return schedule.ErrDoctorNotFound
	}
	m.byDoctor[doctorID] = w
	return nil
}

type spyCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]schedule.Weekly
	invalidated int
}

func newSpyCache() *spyCache {
	return &spyCache{entries: make(map[uuid.UUID]schedule.Weekly)}
}

func (c *spyCache) Get(_ context.Context, doctorID uuid.UUID) (schedule.Weekly, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.entries[doctorID]
	return w, ok
}

func (c *spyCache) Set(_ context.Context, doctorID uuid.UUID, w schedule.Weekly) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[doctorID] = w
}

func (c *spyCache) Invalidate(_ context.Context, doctorID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, doctorID)
	c.invalidated++
}

// fixture wires a Service over the in-memory stores with one doctor who
// works every day 09:00-17:00, a lunch break 12:00-13:00, and a fixed
// clock of Sunday 2026-03-01 10:00 UTC.
type fixture struct {
	svc       *Service
	repo      *memRepo
	schedules *memSchedules
	cache     *spyCache
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemRepo()
	schedules := newMemSchedules()
	cache := newSpyCache()

	doctorID := uuid.New()
	patientID := uuid.New()
	repo.doctors[doctorID] = Doctor{ID: doctorID, Name: "Dr. Test", Specialization: "General Practice"}
	repo.patients[patientID] = Patient{ID: patientID, Name: "Pat"}

	weekly := make(schedule.Weekly)
	for _, name := range schedule.DayNames {
		weekly[name] = schedule.Day{
			Available: true, StartTime: "09:00", EndTime: "17:00",
			BreakStart: "12:00", BreakEnd: "13:00",
		}
	}
	schedules.byDoctor[doctorID] = weekly

	cfg := config.Config{
		SlotDuration: 30 * time.Minute,
		Location:     time.UTC,
	}
	svc := NewService(repo, schedules, cache, cfg, zerolog.Nop())
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	return &fixture{
		svc:       svc,
		repo:      repo,
		schedules: schedules,
		cache:     cache,
		doctorID:  doctorID,
		patientID: patientID,
	}
}

func (f *fixture) addPatient() uuid.UUID {
	id := uuid.New()
	f.repo.mu.Lock()
	f.repo.patients[id] = Patient{ID: id, Name: "Pat"}
	f.repo.mu.Unlock()
	return id
}

const tomorrow = "2026-03-02"

func TestGetBookableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots, err := f.svc.GetBookableSlots(ctx, f.doctorID, tomorrow)
	require.NoError(t, err)
	// 09:00-17:00 on a 30-minute grid is 16 slots, minus 2 for the break.
	require.Len(t, slots, 14)
	assert.Equal(t, TimeSlot{Time: "09:00", Available: true}, slots[0])

	_, err = f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "09:30", nil)
	require.NoError(t, err)

	slots, err = f.svc.GetBookableSlots(ctx, f.doctorID, tomorrow)
	require.NoError(t, err)
	for _, s := range slots {
		if s.Time == "09:30" {
			assert.False(t, s.Available)
		} else {
			assert.True(t, s.Available, s.Time)
		}
	}
}

func TestGetBookableSlotsPastDate(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.GetBookableSlots(context.Background(), f.doctorID, "2026-02-20")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestGetBookableSlotsInvalidDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetBookableSlots(context.Background(), f.doctorID, "03/02/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestGetBookableSlotsUnknownDoctor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetBookableSlots(context.Background(), uuid.New(), tomorrow)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestBook(t *testing.T) {
	f := newFixture(t)
	reason := "checkup"

	appt, err := f.svc.Book(context.Background(), f.doctorID, f.patientID, tomorrow, "10:00", &reason)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, tomorrow, appt.Date)
	assert.Equal(t, "10:00", appt.Time)
	assert.Equal(t, f.patientID, appt.PatientID)
	require.NotNil(t, appt.Reason)
	assert.Equal(t, "checkup", *appt.Reason)
}

func TestBookCanonicalizesTime(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Book(context.Background(), f.doctorID, f.patientID, tomorrow, "9:30", nil)
	require.NoError(t, err)
	assert.Equal(t, "09:30", appt.Time)
}

func TestBookUnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), f.doctorID, uuid.New(), tomorrow, "10:00", nil)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestBookSlotNotOffered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		date string
		time string
	}{
		{"during break", tomorrow, "12:00"},
		{"before opening", tomorrow, "08:00"},
		{"after closing", tomorrow, "17:00"},
		{"off grid", tomorrow, "09:15"},
		{"elapsed today", "2026-03-01", "09:30"},
		{"past date", "2026-02-20", "10:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, f.doctorID, f.patientID, tc.date, tc.time, nil)
			assert.ErrorIs(t, err, ErrSlotNotOffered)
		})
	}
}

func TestBookTakenSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), tomorrow, "10:00", nil)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	patients := make([]uuid.UUID, workers)
	for i := range patients {
		patients[i] = f.addPatient()
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(ctx, f.doctorID, patients[i], tomorrow, "10:00", nil)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, ErrSlotTaken):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, workers-1, lost)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, appt.ID, f.doctorID, StatusConfirmed)
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(ctx, appt.ID, f.patientID, tomorrow, "14:00")
	require.NoError(t, err)
	assert.Equal(t, "14:00", moved.Time)
	// Moving a confirmed appointment puts it back through triage.
	assert.Equal(t, StatusPending, moved.Status)

	// The old slot is free again.
	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), tomorrow, "10:00", nil)
	assert.NoError(t, err)
}

func TestRescheduleLostRaceLeavesOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), tomorrow, "14:00", nil)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.patientID, tomorrow, "14:00")
	require.ErrorIs(t, err, ErrSlotTaken)

	got, err := f.svc.GetAppointment(ctx, appt.ID, f.patientID)
	require.NoError(t, err)
	assert.Equal(t, tomorrow, got.Date)
	assert.Equal(t, "10:00", got.Time)
	assert.Equal(t, StatusPending, got.Status)
}

// interceptRepo lets a test run code between the service's status read
// and its write, reproducing the interleavings the status-guarded
// UPDATEs have to survive.
type interceptRepo struct {
	*memRepo
	beforeMove    func()
	beforeRelease func()
}

func (r *interceptRepo) Move(ctx context.Context, id uuid.UUID, newDate, newTime string) (*Appointment, error) {
	if r.beforeMove != nil {
		r.beforeMove()
	}
	return r.memRepo.Move(ctx, id, newDate, newTime)
}

func (r *interceptRepo) Release(ctx context.Context, id uuid.UUID) error {
	if r.beforeRelease != nil {
		r.beforeRelease()
	}
	return r.memRepo.Release(ctx, id)
}

func TestRescheduleRacingCancelKeepsTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	// The cancel lands after Reschedule's status read but before its
	// write; the guarded UPDATE must not resurrect the cancelled row.
	repo := &interceptRepo{memRepo: f.repo}
	repo.beforeMove = func() {
		repo.beforeMove = nil
		require.NoError(t, f.repo.Release(ctx, appt.ID))
	}
	svc := NewService(repo, f.schedules, f.cache, f.svc.cfg, zerolog.Nop())
	svc.now = f.svc.now

	_, err = svc.Reschedule(ctx, appt.ID, f.patientID, tomorrow, "14:00")
	require.ErrorIs(t, err, ErrInvalidState)

	got, err := f.svc.GetAppointment(ctx, appt.ID, f.patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "10:00", got.Time)
}

func TestCancelRacingCompletionKeepsTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, appt.ID, f.doctorID, StatusConfirmed)
	require.NoError(t, err)

	repo := &interceptRepo{memRepo: f.repo}
	repo.beforeRelease = func() {
		repo.beforeRelease = nil
		_, err := f.repo.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
		require.NoError(t, err)
	}
	svc := NewService(repo, f.schedules, f.cache, f.svc.cfg, zerolog.Nop())
	svc.now = f.svc.now

	require.ErrorIs(t, svc.Cancel(ctx, appt.ID, f.patientID), ErrInvalidState)

	got, err := f.svc.GetAppointment(ctx, appt.ID, f.patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestRescheduleNotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.addPatient(), tomorrow, "14:00")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRescheduleCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, appt.ID, f.patientID))

	_, err = f.svc.Reschedule(ctx, appt.ID, f.patientID, tomorrow, "14:00")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRescheduleToUnofferedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, appt.ID, f.patientID, tomorrow, "12:30")
	assert.ErrorIs(t, err, ErrSlotNotOffered)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, appt.ID, f.patientID))

	got, err := f.svc.GetAppointment(ctx, appt.ID, f.patientID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// A cancelled slot is immediately rebookable.
	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), tomorrow, "10:00", nil)
	assert.NoError(t, err)
}

func TestCancelByDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	assert.NoError(t, f.svc.Cancel(ctx, appt.ID, f.doctorID))
}

func TestCancelByStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Cancel(ctx, appt.ID, uuid.New()), ErrForbidden)
}

func TestCancelTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, appt.ID, f.doctorID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, appt.ID, f.doctorID, StatusCompleted)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Cancel(ctx, appt.ID, f.patientID), ErrInvalidState)
}

func TestAdvanceStatus(t *testing.T) {
	cases := []struct {
		name    string
		prepare []Status
		to      Status
		wantErr error
	}{
		{"pending to confirmed", nil, StatusConfirmed, nil},
		{"confirmed to completed", []Status{StatusConfirmed}, StatusCompleted, nil},
		{"pending to completed skips a step", nil, StatusCompleted, ErrInvalidTransition},
		{"confirmed to confirmed", []Status{StatusConfirmed}, StatusConfirmed, ErrInvalidTransition},
		{"completed is terminal", []Status{StatusConfirmed, StatusCompleted}, StatusConfirmed, ErrInvalidTransition},
		{"cancel is not a status advance", nil, StatusCancelled, ErrInvalidTransition},
		{"pending is not a target", nil, StatusPending, ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
			require.NoError(t, err)
			for _, st := range tc.prepare {
				_, err = f.svc.AdvanceStatus(ctx, appt.ID, f.doctorID, st)
				require.NoError(t, err)
			}

			updated, err := f.svc.AdvanceStatus(ctx, appt.ID, f.doctorID, tc.to)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, updated.Status)
		})
	}
}

func TestAdvanceStatusWrongDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	_, err = f.svc.AdvanceStatus(ctx, appt.ID, uuid.New(), StatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetAppointmentVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	_, err = f.svc.GetAppointment(ctx, appt.ID, f.patientID)
	assert.NoError(t, err)
	_, err = f.svc.GetAppointment(ctx, appt.ID, f.doctorID)
	assert.NoError(t, err)
	_, err = f.svc.GetAppointment(ctx, appt.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), tomorrow, "11:00", nil)
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, f.patientID, "patient", nil, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.svc.ListForUser(ctx, f.doctorID, "doctor", nil, nil)
	require.NoError(t, err)
	assert.Len(t, theirs, 2)

	_, err = f.svc.ListForUser(ctx, f.patientID, "admin", nil, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	pending := StatusPending
	filtered, err := f.svc.ListForUser(ctx, f.doctorID, "doctor", &pending, nil)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestTodayForDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The fixture clock is Sunday 2026-03-01 at 10:00; 15:00 and 16:00
	// are still offerable today.
	_, err := f.svc.Book(ctx, f.doctorID, f.patientID, "2026-03-01", "16:00", nil)
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), "2026-03-01", "15:00", nil)
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.doctorID, f.addPatient(), tomorrow, "10:00", nil)
	require.NoError(t, err)

	date, appts, err := f.svc.TodayForDoctor(ctx, f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", date)
	require.Len(t, appts, 2)
	assert.Equal(t, "15:00", appts[0].Time)
	assert.Equal(t, "16:00", appts[1].Time)
}

func TestHistoryForPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upcoming1, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "10:00", nil)
	require.NoError(t, err)

	cancelled, err := f.svc.Book(ctx, f.doctorID, f.patientID, tomorrow, "11:00", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, cancelled.ID, f.patientID))

	done, err := f.svc.Book(ctx, f.doctorID, f.patientID, "2026-03-01", "15:00", nil)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, done.ID, f.doctorID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, done.ID, f.doctorID, StatusCompleted)
	require.NoError(t, err)

	upcoming, past, err := f.svc.HistoryForPatient(ctx, f.patientID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, upcoming1.ID, upcoming[0].ID)
	// Cancelled and completed land in past even when dated today or later.
	assert.Len(t, past, 2)
}

func TestSaveWeeklySchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := schedule.Weekly{
		"monday": {Available: true, StartTime: "10:00", EndTime: "14:00"},
	}
	require.NoError(t, f.svc.SaveWeeklySchedule(ctx, f.doctorID, f.doctorID, w))

	stored := f.schedules.byDoctor[f.doctorID]
	require.Len(t, stored, 7)
	assert.Equal(t, "10:00", stored["monday"].StartTime)
}

func TestSaveWeeklyScheduleNotOwner(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SaveWeeklySchedule(context.Background(), f.doctorID, uuid.New(), schedule.Default())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSaveWeeklyScheduleInvalid(t *testing.T) {
	f := newFixture(t)

	w := schedule.Weekly{
		"monday": {Available: true, StartTime: "08:00", EndTime: "16:00", BreakStart: "12:00"},
	}
	err := f.svc.SaveWeeklySchedule(context.Background(), f.doctorID, f.doctorID, w)

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "monday", verr.Day)
}

func TestSaveWeeklyScheduleInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Warm the cache, then save and confirm the next read sees the new
	// template rather than the cached one.
	_, err := f.svc.GetBookableSlots(ctx, f.doctorID, tomorrow)
	require.NoError(t, err)
	_, cached := f.cache.Get(ctx, f.doctorID)
	require.True(t, cached)

	w := schedule.Weekly{
		"monday": {Available: true, StartTime: "10:00", EndTime: "12:00"},
	}
	require.NoError(t, f.svc.SaveWeeklySchedule(ctx, f.doctorID, f.doctorID, w))
	assert.Equal(t, 1, f.cache.invalidated)

	slots, err := f.svc.GetBookableSlots(ctx, f.doctorID, tomorrow)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "10:00", slots[0].Time)
}
