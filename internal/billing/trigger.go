package billing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

// Trigger turns appointment transitions into invoice requests. It never
// owns invoice data and never changes amounts.
type Trigger struct {
	invoicer Invoicer
	clinics  clinic.Repository
	metrics  *metrics.Metrics
	logger   *zap.Logger
	timeout  time.Duration
}

func NewTrigger(invoicer Invoicer, clinics clinic.Repository, m *metrics.Metrics, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		invoicer: invoicer,
		clinics:  clinics,
		metrics:  m,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// OnTransition runs after the transition committed. Failures are logged
// and counted; the transition itself stands.
func (t *Trigger) OnTransition(ctx context.Context, tr appointment.Transition) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	appt := tr.Appointment
	walkIn := appt.Source == appointment.SourceWalkIn

	var op string
	switch {
	case walkIn && tr.To == appointment.StatusApproved:
		op = "walk_in_registration"
	case !walkIn && tr.To == appointment.StatusCompleted:
		op = "service_completed"
	case walkIn && tr.To == appointment.StatusCancelled:
		op = "walk_in_cancelled"
	default:
		return
	}

	c, err := t.clinics.Get(ctx, appt.ClinicID)
	if err != nil {
		t.fail(op, appt, err)
		return
	}
	if !c.HasModule(clinic.ModuleBilling) {
		return
	}

	if op == "walk_in_cancelled" {
		t.cancelPending(ctx, appt)
		return
	}
	if appt.Fee <= 0 {
		return
	}

	existing, err := t.invoicer.FindByRelated(ctx, appt.ClinicID, appt.ID)
	if err != nil {
		t.fail(op, appt, err)
		return
	}
	for _, inv := range existing {
		if inv.Status != InvoiceCancelled {
			return
		}
	}

	inv, err := t.invoicer.CreateInvoice(ctx, InvoiceRequest{
		ClinicID:  appt.ClinicID,
		PatientID: appt.PatientID,
		RelatedID: appt.ID,
		Service:   appt.Service,
		Amount:    appt.Fee,
		Status:    InvoicePending,
	})
	if err != nil {
		t.fail(op, appt, err)
		return
	}
	t.logger.Info("invoice requested",
		zap.String("operation", op),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("appointment_id", appt.ID.String()),
		zap.Int64("amount", inv.Amount),
	)
}

func (t *Trigger) cancelPending(ctx context.Context, appt appointment.Appointment) {
	existing, err := t.invoicer.FindByRelated(ctx, appt.ClinicID, appt.ID)
	if err != nil {
		t.fail("walk_in_cancelled", appt, err)
		return
	}
	for _, inv := range existing {
		if inv.Status != InvoicePending {
			continue
		}
		if err := t.invoicer.SetInvoiceStatus(ctx, appt.ClinicID, inv.ID, InvoiceCancelled); err != nil {
			t.fail("walk_in_cancelled", appt, err)
		}
	}
}

func (t *Trigger) fail(op string, appt appointment.Appointment, err error) {
	t.metrics.ObserveBillingFailure(op)
	t.logger.Error("billing trigger failed",
		zap.String("operation", op),
		zap.String("appointment_id", appt.ID.String()),
		zap.Error(err),
	)
}
