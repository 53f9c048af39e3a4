package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

type memRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order
	// raceOnce simulates another worker completing the order between the
	// read and the update.
	raceOnce bool
	updates  int
	// authors maps assessment to the doctor who recorded it.
	authors map[uuid.UUID]uuid.UUID
}

func (m *memRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.ClinicID != clinicID {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) ListByDepartment(_ context.Context, clinicID uuid.UUID, d Department, status Status) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.ClinicID == clinicID && o.Department == d && o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) ListByAssessment(_ context.Context, clinicID, assessmentID uuid.UUID) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.ClinicID == clinicID && o.AssessmentID == assessmentID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) ListByDoctor(_ context.Context, clinicID, doctorID uuid.UUID, status Status) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.ClinicID != clinicID || m.authors[o.AssessmentID] != doctorID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memRepo) MarkCompleted(_ context.Context, clinicID, id, actorID uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.ClinicID != clinicID {
		return nil, ErrOrderNotFound
	}
	if m.raceOnce {
		m.raceOnce = false
		now := time.Now()
		o.Status = StatusCompleted
		o.CompletedAt = &now
		return nil, ErrNotPending
	}
	if o.Status != StatusPending {
		return nil, ErrNotPending
	}
	m.updates++
	now := time.Now()
	o.Status = StatusCompleted
	o.CompletedAt = &now
	o.CompletedBy = &actorID
	cp := *o
	return &cp, nil
}

type orderFixture struct {
	svc        *Service
	repo       *memRepo
	clinicID   uuid.UUID
	labOrder   uuid.UUID
	assessment uuid.UUID
	doctor     uuid.UUID
}

func newOrderFixture() *orderFixture {
	clinicID := uuid.New()
	labOrder := uuid.New()
	assessmentID, doctor := uuid.New(), uuid.New()
	repo := &memRepo{
		orders: map[uuid.UUID]*Order{
			labOrder: {ID: labOrder, ClinicID: clinicID, AssessmentID: assessmentID, Department: DepartmentLaboratory, Instruction: "CBC", Status: StatusPending},
		},
		authors: map[uuid.UUID]uuid.UUID{assessmentID: doctor},
	}
	return &orderFixture{
		svc:        NewService(repo, nil, nil),
		repo:       repo,
		clinicID:   clinicID,
		labOrder:   labOrder,
		assessment: assessmentID,
		doctor:     doctor,
	}
}

func sessionCtx(clinicID uuid.UUID, roles ...tenancy.Role) context.Context {
	return userCtx(clinicID, uuid.New(), roles...)
}

func userCtx(clinicID, user uuid.UUID, roles ...tenancy.Role) context.Context {
	return tenancy.WithSession(context.Background(), tenancy.Session{UserID: user, ClinicID: clinicID, Roles: roles})
}

func TestCompleteTwiceIsIdempotent(t *testing.T) {
	f := newOrderFixture()
	ctx := sessionCtx(f.clinicID, tenancy.RoleLaboratory)

	first, err := f.svc.Complete(ctx, f.labOrder)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, first.Status)
	require.NotNil(t, first.CompletedAt)

	second, err := f.svc.Complete(ctx, f.labOrder)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, 1, f.repo.updates)
}

func TestCompleteAfterConcurrentCompletion(t *testing.T) {
	f := newOrderFixture()
	f.repo.raceOnce = true

	got, err := f.svc.Complete(sessionCtx(f.clinicID, tenancy.RoleLaboratory), f.labOrder)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestCompleteByWrongDepartment(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.Complete(sessionCtx(f.clinicID, tenancy.RolePharmacy), f.labOrder)
	assert.Equal(t, apperr.CodeWrongDepartment, apperr.CodeOf(err))
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))

	o, err := f.repo.Get(context.Background(), f.clinicID, f.labOrder)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
}

func TestCompleteByNonDepartmentStaff(t *testing.T) {
	f := newOrderFixture()
	_, err := f.svc.Complete(sessionCtx(f.clinicID, tenancy.RoleDoctor), f.labOrder)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestCompleteOtherClinicsOrder(t *testing.T) {
	f := newOrderFixture()
	_, err := f.svc.Complete(sessionCtx(uuid.New(), tenancy.RoleLaboratory), f.labOrder)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestQueue(t *testing.T) {
	f := newOrderFixture()

	list, err := f.svc.Queue(sessionCtx(f.clinicID, tenancy.RoleLaboratory), DepartmentLaboratory)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Queue(sessionCtx(f.clinicID, tenancy.RolePharmacy), DepartmentLaboratory)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	list, err = f.svc.Queue(sessionCtx(uuid.New(), tenancy.RoleLaboratory), DepartmentLaboratory)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestForDoctorTracksOrdersToCompletion(t *testing.T) {
	f := newOrderFixture()
	doctorCtx := userCtx(f.clinicID, f.doctor, tenancy.RoleDoctor)

	list, err := f.svc.ForDoctor(doctorCtx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, StatusPending, list[0].Status)

	_, err = f.svc.Complete(sessionCtx(f.clinicID, tenancy.RoleLaboratory), f.labOrder)
	require.NoError(t, err)

	list, err = f.svc.ForDoctor(doctorCtx, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.labOrder, list[0].ID)

	list, err = f.svc.ForDoctor(doctorCtx, StatusPending)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestForDoctorOnlySeesOwnAssessments(t *testing.T) {
	f := newOrderFixture()

	list, err := f.svc.ForDoctor(sessionCtx(f.clinicID, tenancy.RoleDoctor), "")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.ForDoctor(userCtx(uuid.New(), f.doctor, tenancy.RoleDoctor), "")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.ForDoctor(sessionCtx(f.clinicID, tenancy.RoleLaboratory), "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestForAssessment(t *testing.T) {
	f := newOrderFixture()

	list, err := f.svc.ForAssessment(sessionCtx(f.clinicID, tenancy.RoleReception), f.assessment)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, DepartmentLaboratory, list[0].Department)

	list, err = f.svc.ForAssessment(sessionCtx(uuid.New(), tenancy.RoleDoctor), f.assessment)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.ForAssessment(sessionCtx(f.clinicID, tenancy.RolePatient), f.assessment)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" Completed ")
	assert.True(t, ok)
	assert.Equal(t, StatusCompleted, st)

	st, ok = ParseStatus("")
	assert.True(t, ok)
	assert.Empty(t, st)

	_, ok = ParseStatus("cancelled")
	assert.False(t, ok)
}
