package clinic

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

// LoadActive fetches a clinic and rejects inactive ones.
func LoadActive(ctx context.Context, repo Repository, clinicID uuid.UUID) (*Clinic, error) {
	c, err := repo.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, apperr.Constraint(apperr.CodeClinicInactive, "clinic is not active")
	}
	return c, nil
}

// Service exposes the booking configuration to clinic admins.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) BookingConfig(ctx context.Context) (availability.RuleSet, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return availability.RuleSet{}, err
	}
	if err := sess.Require(tenancy.CapManageBookingConfig); err != nil {
		return availability.RuleSet{}, err
	}
	c, err := s.repo.Get(ctx, sess.ClinicID)
	if err != nil {
		return availability.RuleSet{}, err
	}
	return c.Rules, nil
}

func (s *Service) SaveBookingConfig(ctx context.Context, rules availability.RuleSet) (availability.RuleSet, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return availability.RuleSet{}, err
	}
	if err := sess.Require(tenancy.CapManageBookingConfig); err != nil {
		return availability.RuleSet{}, err
	}
	normalized, err := rules.Normalize()
	if err != nil {
		return availability.RuleSet{}, err
	}
	if err := s.repo.SaveRules(ctx, sess.ClinicID, normalized); err != nil {
		return availability.RuleSet{}, err
	}
	return normalized, nil
}
