package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewService(repo Repository, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, metrics: m, logger: logger}
}

// Complete marks an order done on behalf of its department. Completing an
// already completed order is a no-op that returns the stored order.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Order, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if !servesAnyDepartment(sess) {
		return nil, apperr.Forbidden("only department staff complete orders")
	}

	order, err := s.repo.Get(ctx, sess.ClinicID, id)
	if err != nil {
		return nil, err
	}
	if !sess.Can(order.Department.Capability()) {
		return nil, apperr.New(apperr.KindState, apperr.CodeWrongDepartment,
			fmt.Sprintf("order belongs to %s", order.Department)).
			With("department", string(order.Department))
	}
	if order.Status == StatusCompleted {
		return order, nil
	}

	updated, err := s.repo.MarkCompleted(ctx, sess.ClinicID, id, sess.UserID)
	if errors.Is(err, ErrNotPending) {
		// completed concurrently; report the stored terminal state
		return s.repo.Get(ctx, sess.ClinicID, id)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveOrderCompleted(string(updated.Department))
	s.logger.Info("department order completed",
		zap.String("order_id", updated.ID.String()),
		zap.String("department", string(updated.Department)),
	)
	return updated, nil
}

// Queue lists pending orders for one department of the session's clinic.
func (s *Service) Queue(ctx context.Context, d Department) ([]Order, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Can(d.Capability()) && !sess.Can(tenancy.CapViewClinicSchedule) {
		return nil, apperr.Forbidden(fmt.Sprintf("no access to %s orders", d))
	}
	return s.repo.ListByDepartment(ctx, sess.ClinicID, d, StatusPending)
}

// ForDoctor lists the orders issued from the acting doctor's assessments
// so they can be tracked to completion.
func (s *Service) ForDoctor(ctx context.Context, status Status) ([]Order, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Require(tenancy.CapRecordAssessment); err != nil {
		return nil, err
	}
	return s.repo.ListByDoctor(ctx, sess.ClinicID, sess.UserID, status)
}

// ForAssessment lists every order one assessment produced, whatever its
// status. Orders of another clinic's assessment come back empty.
func (s *Service) ForAssessment(ctx context.Context, assessmentID uuid.UUID) ([]Order, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Can(tenancy.CapRecordAssessment) && !sess.Can(tenancy.CapViewClinicSchedule) {
		return nil, apperr.Forbidden("no access to assessment orders")
	}
	return s.repo.ListByAssessment(ctx, sess.ClinicID, assessmentID)
}

func servesAnyDepartment(sess tenancy.Session) bool {
	for _, d := range Departments {
		if sess.Can(d.Capability()) {
			return true
		}
	}
	return false
}
