package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/forms"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/orders"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

const appointmentConstraint = "assessments_appointment_key"

// Assessment is the doctor's record of a completed encounter. It is
// immutable once stored.
type Assessment struct {
	ID            uuid.UUID           `json:"id"`
	ClinicID      uuid.UUID           `json:"clinic_id"`
	AppointmentID uuid.UUID           `json:"appointment_id"`
	PatientID     uuid.UUID           `json:"patient_id"`
	DoctorID      uuid.UUID           `json:"doctor_id"`
	TemplateID    uuid.UUID           `json:"template_id"`
	Answers       forms.Answers       `json:"answers"`
	Instructions  orders.Instructions `json:"instructions"`
	CreatedAt     time.Time           `json:"created_at"`
}

type RecordRequest struct {
	AppointmentID uuid.UUID
	TemplateID    uuid.UUID
	Answers       forms.Answers
	Instructions  orders.Instructions
}

// Result is everything one recording produced.
type Result struct {
	Assessment  Assessment              `json:"assessment"`
	Appointment appointment.Appointment `json:"-"`
	Orders      []orders.Order          `json:"orders"`
	Warnings    []orders.Warning        `json:"warnings,omitempty"`
}

type Service struct {
	db        db.TxBeginner
	clinics   clinic.Repository
	templates forms.TemplateSource
	observers []appointment.Observer
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewService(pool db.TxBeginner, clinics clinic.Repository, templates forms.TemplateSource, observers []appointment.Observer, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        pool,
		clinics:   clinics,
		templates: templates,
		observers: observers,
		metrics:   m,
		logger:    logger,
	}
}

// Record stores the assessment, completes the appointment and fans out the
// department orders as one transaction. Any failure rolls all of it back.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Result, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Require(tenancy.CapRecordAssessment); err != nil {
		return nil, err
	}
	if req.AppointmentID == uuid.Nil || req.TemplateID == uuid.Nil {
		return nil, apperr.Validation("appointment_id and template_id are required")
	}

	c, err := clinic.LoadActive(ctx, s.clinics, sess.ClinicID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.Get(ctx, sess.ClinicID, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := tpl.Validate(req.Answers); err != nil {
		return nil, err
	}
	if req.Answers == nil {
		req.Answers = forms.Answers{}
	}

	var (
		res  Result
		from appointment.Status
	)
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		appt, err := appointment.LockForUpdate(ctx, tx, sess.ClinicID, req.AppointmentID)
		if err != nil {
			return err
		}
		if appt.DoctorID != sess.UserID {
			return apperr.Forbidden("only the treating doctor can record this assessment")
		}
		if err := appointment.CheckTransition(appt.Status, appointment.StatusCompleted); err != nil {
			return err
		}
		from = appt.Status

		completed, err := appointment.SetStatus(ctx, tx, sess.ClinicID, appt.ID, appt.Status, appointment.StatusCompleted)
		if errors.Is(err, appointment.ErrStale) {
			return appointment.StaleStatus(appt.Status, appointment.StatusCompleted)
		}
		if err != nil {
			return err
		}
		res.Appointment = *completed

		res.Assessment = Assessment{
			ID:            uuid.New(),
			ClinicID:      sess.ClinicID,
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      sess.UserID,
			TemplateID:    tpl.ID,
			Answers:       req.Answers,
			Instructions:  req.Instructions,
		}
		if err := insert(ctx, tx, &res.Assessment); err != nil {
			return err
		}

		if err := events.Append(ctx, tx, appointment.TransitionEvent(completed, from, sess.UserID)); err != nil {
			return err
		}
		assessmentID := res.Assessment.ID
		if err := events.Append(ctx, tx, events.Event{
			ClinicID:      sess.ClinicID,
			Type:          events.AssessmentRecorded,
			AppointmentID: &completed.ID,
			Payload:       map[string]any{"assessment_id": assessmentID, "template_id": tpl.ID},
		}); err != nil {
			return err
		}

		res.Orders, res.Warnings, err = orders.Fanout(ctx, tx, c, orders.Source{
			ClinicID:     sess.ClinicID,
			PatientID:    appt.PatientID,
			AssessmentID: assessmentID,
		}, req.Instructions)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, o := range res.Orders {
		s.metrics.ObserveOrderCreated(string(o.Department))
	}
	for _, w := range res.Warnings {
		s.metrics.ObserveInstructionDropped(string(w.Department))
		s.logger.Warn("department instruction dropped",
			zap.String("assessment_id", res.Assessment.ID.String()),
			zap.String("department", string(w.Department)),
			zap.String("reason", w.Code),
		)
	}
	s.metrics.ObserveTransition(string(from), string(appointment.StatusCompleted))
	s.logger.Info("assessment recorded",
		zap.String("assessment_id", res.Assessment.ID.String()),
		zap.String("appointment_id", res.Appointment.ID.String()),
		zap.Int("orders", len(res.Orders)),
	)

	appointment.Notify(ctx, s.observers, appointment.Transition{
		Appointment: res.Appointment,
		From:        from,
		To:          appointment.StatusCompleted,
		ActorID:     sess.UserID,
	})
	return &res, nil
}

func insert(ctx context.Context, q db.Querier, a *Assessment) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return apperr.Validation("answers are not valid JSON")
	}
	instructions, err := json.Marshal(a.Instructions)
	if err != nil {
		return fmt.Errorf("encode instructions: %w", err)
	}
	err = q.QueryRow(ctx, `
		INSERT INTO assessments (id, clinic_id, appointment_id, patient_id, doctor_id, template_id, answers, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, a.ID, a.ClinicID, a.AppointmentID, a.PatientID, a.DoctorID, a.TemplateID, answers, instructions).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err, appointmentConstraint) {
		return apperr.Conflict("assessment already recorded for this appointment")
	}
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}
