package clinic

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

type memRepo struct {
	clinics map[uuid.UUID]*Clinic
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) SaveRules(_ context.Context, id uuid.UUID, rules availability.RuleSet) error {
	c, ok := m.clinics[id]
	if !ok {
		return ErrClinicNotFound
	}
	c.Rules = rules
	return nil
}

func TestSaveBookingConfigNormalizes(t *testing.T) {
	clinicID := uuid.New()
	repo := &memRepo{clinics: map[uuid.UUID]*Clinic{clinicID: {ID: clinicID, Active: true}}}
	svc := NewService(repo)
	ctx := tenancy.WithSession(context.Background(), tenancy.Session{
		UserID: uuid.New(), ClinicID: clinicID, Roles: []tenancy.Role{tenancy.RoleClinicAdmin},
	})

	saved, err := svc.SaveBookingConfig(ctx, availability.RuleSet{
		Enabled:  true,
		Services: []string{"Consultation"},
		Slots:    []availability.Slot{"10:00", "9:00 AM"},
	})
	require.NoError(t, err)
	assert.Equal(t, []availability.Slot{"09:00", "10:00"}, saved.Slots)

	got, err := svc.BookingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Slots, got.Slots)
}

func TestBookingConfigRequiresAdmin(t *testing.T) {
	clinicID := uuid.New()
	svc := NewService(&memRepo{clinics: map[uuid.UUID]*Clinic{clinicID: {ID: clinicID}}})
	ctx := tenancy.WithSession(context.Background(), tenancy.Session{
		UserID: uuid.New(), ClinicID: clinicID, Roles: []tenancy.Role{tenancy.RoleReception},
	})

	_, err := svc.BookingConfig(ctx)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestLoadActive(t *testing.T) {
	active, inactive := uuid.New(), uuid.New()
	repo := &memRepo{clinics: map[uuid.UUID]*Clinic{
		active:   {ID: active, Active: true},
		inactive: {ID: inactive},
	}}

	_, err := LoadActive(context.Background(), repo, active)
	require.NoError(t, err)

	_, err = LoadActive(context.Background(), repo, inactive)
	assert.Equal(t, apperr.CodeClinicInactive, apperr.CodeOf(err))

	_, err = LoadActive(context.Background(), repo, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
