package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/assessment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/orders"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

type fakeAppointments struct {
	availability func(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, service string) ([]availability.SlotStatus, error)
	create       func(ctx context.Context, req appointment.CreateRequest) (*appointment.Appointment, error)
	transition   func(ctx context.Context, id uuid.UUID, action appointment.Action) (*appointment.Appointment, error)
	get          func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	list         func(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
}

func (f *fakeAppointments) Availability(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, service string) ([]availability.SlotStatus, error) {
	return f.availability(ctx, clinicID, doctorID, date, service)
}

func (f *fakeAppointments) Create(ctx context.Context, req appointment.CreateRequest) (*appointment.Appointment, error) {
	return f.create(ctx, req)
}

func (f *fakeAppointments) Transition(ctx context.Context, id uuid.UUID, action appointment.Action) (*appointment.Appointment, error) {
	return f.transition(ctx, id, action)
}

func (f *fakeAppointments) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return f.get(ctx, id)
}

func (f *fakeAppointments) GetByReference(ctx context.Context, code string) (*appointment.Appointment, error) {
	return nil, apperr.NotFound("appointment")
}

func (f *fakeAppointments) List(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
	return f.list(ctx, filter)
}

func (f *fakeAppointments) DoctorQueue(ctx context.Context, date *time.Time) ([]appointment.Appointment, error) {
	return nil, nil
}

type fakeAssessments struct{}

func (fakeAssessments) Record(ctx context.Context, req assessment.RecordRequest) (*assessment.Result, error) {
	return nil, apperr.InvalidTransition("approved", "completed")
}

type fakeOrders struct {
	queued []orders.Order
	issued []orders.Order
	// gotStatus records the filter ForDoctor was called with.
	gotStatus orders.Status
}

func (f *fakeOrders) Complete(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	return nil, apperr.NotFound("order")
}

func (f *fakeOrders) Queue(ctx context.Context, d orders.Department) ([]orders.Order, error) {
	return f.queued, nil
}

type fakeBookingConfig struct {
	saved availability.RuleSet
}

func (f *fakeBookingConfig) BookingConfig(ctx context.Context) (availability.RuleSet, error) {
	return f.saved, nil
}

func (f *fakeBookingConfig) SaveBookingConfig(ctx context.Context, rules availability.RuleSet) (availability.RuleSet, error) {
	if _, err := tenancy.MustSession(ctx); err != nil {
		return availability.RuleSet{}, err
	}
	normalized, err := rules.Normalize()
	if err != nil {
		return availability.RuleSet{}, err
	}
	f.saved = normalized
	return normalized, nil
}

func (f *fakeOrders) ForDoctor(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Require(tenancy.CapRecordAssessment); err != nil {
		return nil, err
	}
	f.gotStatus = status
	return f.issued, nil
}

func (f *fakeOrders) ForAssessment(ctx context.Context, assessmentID uuid.UUID) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.issued {
		if o.AssessmentID == assessmentID {
			out = append(out, o)
		}
	}
	return out, nil
}
