package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

// memRepo enforces the same slot and reference uniqueness as the database.
type memRepo struct {
	mu            sync.Mutex
	rows          map[uuid.UUID]*Appointment
	refCollisions int
	updates       int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[uuid.UUID]*Appointment{}}
}

func (m *memRepo) Create(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if r.ClinicID == appt.ClinicID && r.DoctorID == appt.DoctorID && r.Date.Equal(appt.Date) &&
			r.Time == appt.Time && r.Status.HoldsSlot() {
			return SlotTaken(r.ReferenceCode)
		}
	}
	if m.refCollisions > 0 {
		m.refCollisions--
		return ErrReferenceTaken
	}
	for _, r := range m.rows {
		if r.ClinicID == appt.ClinicID && r.ReferenceCode == appt.ReferenceCode {
			return ErrReferenceTaken
		}
	}
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	cp := *appt
	m.rows[appt.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.ClinicID != clinicID {
		return nil, ErrAppointmentNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) GetByReference(_ context.Context, clinicID uuid.UUID, code string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ClinicID == clinicID && r.ReferenceCode == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) List(_ context.Context, clinicID uuid.UUID, f Filter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, r := range m.rows {
		if r.ClinicID != clinicID {
			continue
		}
		if f.Date != nil && !r.Date.Equal(*f.Date) {
			continue
		}
		if f.DoctorID != uuid.Nil && r.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientID != uuid.Nil && r.PatientID != f.PatientID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (m *memRepo) TakenSlots(_ context.Context, clinicID, doctorID uuid.UUID, date time.Time) (map[availability.Slot]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := map[availability.Slot]bool{}
	for _, r := range m.rows {
		if r.ClinicID == clinicID && r.DoctorID == doctorID && r.Date.Equal(date) && r.Status.HoldsSlot() {
			taken[r.Time] = true
		}
	}
	return taken, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, clinicID, id uuid.UUID, from, to Status, _ uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	r, ok := m.rows[id]
	if !ok || r.ClinicID != clinicID {
		return nil, ErrAppointmentNotFound
	}
	if r.Status != from {
		return nil, StaleStatus(r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

type memDirectory struct {
	patients map[uuid.UUID]uuid.UUID
	doctors  map[uuid.UUID]uuid.UUID
}

func newMemDirectory() *memDirectory {
	return &memDirectory{patients: map[uuid.UUID]uuid.UUID{}, doctors: map[uuid.UUID]uuid.UUID{}}
}

func (d *memDirectory) PatientInClinic(_ context.Context, clinicID, patientID uuid.UUID) (bool, error) {
	return d.patients[patientID] == clinicID, nil
}

func (d *memDirectory) DoctorInClinic(_ context.Context, clinicID, doctorID uuid.UUID) (bool, error) {
	return d.doctors[doctorID] == clinicID, nil
}

type memClinics map[uuid.UUID]*clinic.Clinic

func (m memClinics) Get(_ context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	c, ok := m[id]
	if !ok {
		return nil, clinic.ErrClinicNotFound
	}
	cp := *c
	return &cp, nil
}

func (m memClinics) SaveRules(_ context.Context, id uuid.UUID, rules availability.RuleSet) error {
	c, ok := m[id]
	if !ok {
		return clinic.ErrClinicNotFound
	}
	c.Rules = rules
	return nil
}

// counterRefs mimics the Redis counter.
type counterRefs struct {
	mu sync.Mutex
	n  int
}

func (c *counterRefs) Next(_ context.Context, _ uuid.UUID, date time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("EV-%s-%04d", date.Format("20060102"), c.n), nil
}

type brokenRefs struct{}

func (brokenRefs) Next(context.Context, uuid.UUID, time.Time) (string, error) {
	return "", errors.New("redis: connection refused")
}

type recordingObserver struct {
	mu  sync.Mutex
	got []Transition
}

func (o *recordingObserver) OnTransition(_ context.Context, t Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, t)
}
