package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

const referenceAttempts = 4

// Transition is a committed status change.
type Transition struct {
	Appointment Appointment
	From        Status
	To          Status
	ActorID     uuid.UUID
}

// Observer is told about every committed transition. It runs after the
// commit and cannot undo it.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// CreateRequest is a booking request. PatientID is ignored for patient
// sessions, which always book for themselves.
type CreateRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Service   string
	Source    Source
	// Override skips the clinic's availability rules. Privileged only.
	Override bool
	// Fee is the registration fee for walk-ins, in minor units.
	Fee *int64
}

// Directory confirms that people named in a booking belong to the clinic.
type Directory interface {
	PatientInClinic(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error)
	DoctorInClinic(ctx context.Context, clinicID, doctorID uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	clinics   clinic.Repository
	people    Directory
	refs      redisclient.ReferenceIssuer
	observers []Observer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, clinics clinic.Repository, people Directory, refs redisclient.ReferenceIssuer, logger *zap.Logger) *Service {
	if refs == nil {
		refs = redisclient.RandomReferences{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		clinics: clinics,
		people:  people,
		refs:    refs,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) WithObserver(o Observer) *Service {
	s.observers = append(s.observers, o)
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Observers returns the registered observers so other units that complete
// appointments can notify the same set.
func (s *Service) Observers() []Observer {
	return s.observers
}

// Availability lists the clinic's slots for a doctor, date and service with
// a per-slot bookable flag.
func (s *Service) Availability(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, service string) ([]availability.SlotStatus, error) {
	c, err := clinic.LoadActive(ctx, s.clinics, clinicID)
	if err != nil {
		return nil, err
	}
	taken, err := s.repo.TakenSlots(ctx, clinicID, doctorID, date)
	if err != nil {
		return nil, err
	}
	return c.Rules.Picker(doctorID, date, service, taken), nil
}

// Create validates and allocates a booking in the session's clinic. The
// new appointment starts Pending; walk-ins are stored Approved in the same
// write, with the registering receptionist as approver.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	appt, err := s.create(ctx, sess, req)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.CodeOf(err))
	}
	s.metrics.ObserveBooking(string(req.Source), outcome)
	return appt, err
}

func (s *Service) create(ctx context.Context, sess tenancy.Session, req CreateRequest) (*Appointment, error) {
	if err := authorizeBooking(sess, &req); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	c, err := clinic.LoadActive(ctx, s.clinics, sess.ClinicID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPeople(ctx, c.ID, req); err != nil {
		return nil, err
	}

	var booking availability.Booking
	if req.Override {
		slot, err := availability.ParseSlot(req.Time)
		if err != nil {
			return nil, apperr.Constraint(apperr.CodeInvalidSlot, fmt.Sprintf("%q is not a valid time", req.Time))
		}
		booking = availability.Booking{
			DoctorID: req.DoctorID,
			Date:     req.Date,
			Time:     slot,
			Service:  strings.TrimSpace(req.Service),
		}
	} else {
		booking, err = c.Rules.IsBookable(availability.Request{
			DoctorID: req.DoctorID,
			Date:     req.Date,
			Time:     req.Time,
			Service:  req.Service,
		})
		if err != nil {
			return nil, err
		}
	}

	fee := c.Rules.FeeFor(booking.Service)
	if req.Source == SourceWalkIn && req.Fee != nil {
		fee = *req.Fee
	}

	appt := &Appointment{
		ID:        uuid.New(),
		ClinicID:  c.ID,
		PatientID: req.PatientID,
		DoctorID:  booking.DoctorID,
		Date:      booking.Date,
		Time:      booking.Time,
		Service:   booking.Service,
		Status:    StatusPending,
		Source:    req.Source,
		Fee:       fee,
		CreatedBy: sess.UserID,
	}
	if appt.Source == SourceWalkIn {
		appt.Status = StatusApproved
	}
	if err := s.allocate(ctx, appt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("clinic_id", appt.ClinicID.String()),
		zap.String("appointment_id", appt.ID.String()),
		zap.String("reference", appt.ReferenceCode),
		zap.String("source", string(appt.Source)),
		zap.Bool("override", req.Override),
	)

	if appt.Status != StatusPending {
		s.committed(ctx, Transition{Appointment: *appt, From: StatusPending, To: appt.Status, ActorID: sess.UserID})
	}
	return appt, nil
}

// checkPeople rejects patients and doctors that are not on the clinic's
// books. Both answer NotFound, like any other foreign row.
func (s *Service) checkPeople(ctx context.Context, clinicID uuid.UUID, req CreateRequest) error {
	ok, err := s.people.PatientInClinic(ctx, clinicID, req.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("patient")
	}
	ok, err = s.people.DoctorInClinic(ctx, clinicID, req.DoctorID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("doctor")
	}
	return nil
}

// allocate persists appt, re-rolling the reference code on collisions.
func (s *Service) allocate(ctx context.Context, appt *Appointment) error {
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		appt.ReferenceCode = s.reference(ctx, appt.ClinicID, appt.Date, attempt)
		err := s.repo.Create(ctx, appt)
		if errors.Is(err, ErrReferenceTaken) {
			s.logger.Warn("reference code collision, retrying",
				zap.String("reference", appt.ReferenceCode),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return err
	}
	return apperr.Internal(fmt.Errorf("no free reference code after %d attempts", referenceAttempts))
}

func (s *Service) reference(ctx context.Context, clinicID uuid.UUID, date time.Time, attempt int) string {
	if attempt > 0 {
		return redisclient.RandomReference(date)
	}
	code, err := s.refs.Next(ctx, clinicID, date)
	if err != nil {
		s.logger.Warn("reference counter unavailable, using random code", zap.Error(err))
		return redisclient.RandomReference(date)
	}
	return code
}

func authorizeBooking(sess tenancy.Session, req *CreateRequest) error {
	if req.Override && !sess.Can(tenancy.CapOverrideAvailability) {
		return apperr.Forbidden("availability override requires reception or clinic admin")
	}
	switch req.Source {
	case SourcePatientPortal, SourcePublicLink:
		if sess.Can(tenancy.CapBookForPatient) {
			return nil
		}
		if err := sess.Require(tenancy.CapBookOwn); err != nil {
			return err
		}
		if sess.PatientID == uuid.Nil {
			return apperr.Forbidden("session has no patient identity")
		}
		req.PatientID = sess.PatientID
		return nil
	case SourceReception, SourceWalkIn:
		return sess.Require(tenancy.CapBookForPatient)
	}
	return apperr.Validation(fmt.Sprintf("unknown source %q", req.Source))
}

func validateRequest(req CreateRequest) error {
	switch {
	case req.PatientID == uuid.Nil:
		return apperr.Validation("patient_id is required")
	case req.DoctorID == uuid.Nil:
		return apperr.Validation("doctor_id is required")
	case req.Date.IsZero():
		return apperr.Validation("date is required")
	case strings.TrimSpace(req.Time) == "":
		return apperr.Validation("time is required")
	case strings.TrimSpace(req.Service) == "":
		return apperr.Validation("service is required")
	case req.Fee != nil && req.Source != SourceWalkIn:
		return apperr.Validation("fee is only accepted for walk-ins")
	case req.Fee != nil && *req.Fee < 0:
		return apperr.Validation("fee must not be negative")
	}
	return nil
}

// Transition applies a caller action to an appointment in the session's
// clinic. Completion is not an action; it happens when the treating doctor
// records the assessment.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action Action) (*Appointment, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	to, err := action.Target()
	if err != nil {
		return nil, err
	}
	appt, err := visibleTo(sess, func(clinicID uuid.UUID) (*Appointment, error) {
		return s.repo.Get(ctx, clinicID, id)
	})
	if err != nil {
		return nil, err
	}
	if err := authorizeAction(sess, appt, action); err != nil {
		return nil, err
	}
	if err := CheckTransition(appt.Status, to); err != nil {
		return nil, err
	}
	if action == ActionCheckIn {
		if err := s.checkInOpen(ctx, appt); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, sess.UserID, appt, to)
}

func authorizeAction(sess tenancy.Session, appt *Appointment, action Action) error {
	switch action {
	case ActionApprove, ActionReject:
		return sess.Require(tenancy.CapReviewBooking)
	case ActionCheckIn:
		return sess.Require(tenancy.CapCheckIn)
	case ActionCancel:
		if sess.Can(tenancy.CapCancelAny) {
			return nil
		}
		if sess.Can(tenancy.CapCancelOwn) && appt.PatientID == sess.PatientID {
			return nil
		}
		return apperr.Forbidden("cannot cancel this appointment")
	}
	return apperr.Validation("unknown action " + string(action))
}

// checkInOpen allows check-in on or after the appointment date in the
// clinic's own timezone.
func (s *Service) checkInOpen(ctx context.Context, appt *Appointment) error {
	c, err := s.clinics.Get(ctx, appt.ClinicID)
	if err != nil {
		return err
	}
	if c.Today(s.now()).Before(appt.Date) {
		return apperr.New(apperr.KindState, apperr.CodeInvalidTransition,
			fmt.Sprintf("check-in opens on %s", availability.DateKey(appt.Date))).
			With("current", string(appt.Status)).
			With("requested", string(StatusCheckedIn))
	}
	return nil
}

func (s *Service) apply(ctx context.Context, actorID uuid.UUID, appt *Appointment, to Status) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, appt.ClinicID, appt.ID, appt.Status, to, actorID)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, Transition{Appointment: *updated, From: appt.Status, To: to, ActorID: actorID})
	return updated, nil
}

func (s *Service) committed(ctx context.Context, t Transition) {
	s.metrics.ObserveTransition(string(t.From), string(t.To))
	s.logger.Info("appointment transitioned",
		zap.String("appointment_id", t.Appointment.ID.String()),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
	)
	Notify(ctx, s.observers, t)
}

// Notify hands t to each observer in order.
func Notify(ctx context.Context, observers []Observer, t Transition) {
	for _, o := range observers {
		o.OnTransition(ctx, t)
	}
}

// ownOnly reports whether the session may only see its own bookings.
func ownOnly(sess tenancy.Session) bool {
	return !sess.Can(tenancy.CapViewClinicSchedule) && !sess.Can(tenancy.CapReviewBooking)
}

// visibleTo loads an appointment through fetch and hides bookings a patient
// session does not own behind NotFound.
func visibleTo(sess tenancy.Session, fetch func(clinicID uuid.UUID) (*Appointment, error)) (*Appointment, error) {
	appt, err := fetch(sess.ClinicID)
	if err != nil {
		return nil, err
	}
	if ownOnly(sess) && (sess.PatientID == uuid.Nil || appt.PatientID != sess.PatientID) {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	return visibleTo(sess, func(clinicID uuid.UUID) (*Appointment, error) {
		return s.repo.Get(ctx, clinicID, id)
	})
}

func (s *Service) GetByReference(ctx context.Context, code string) (*Appointment, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperr.Validation("reference code is required")
	}
	return visibleTo(sess, func(clinicID uuid.UUID) (*Appointment, error) {
		return s.repo.GetByReference(ctx, clinicID, code)
	})
}

// List returns the clinic's appointments matching f. Patient sessions only
// ever see their own bookings.
func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if ownOnly(sess) {
		if err := sess.Require(tenancy.CapViewOwnAppointments); err != nil {
			return nil, err
		}
		f.PatientID = sess.PatientID
		if f.PatientID == uuid.Nil {
			return nil, apperr.Forbidden("session has no patient identity")
		}
	}
	return s.repo.List(ctx, sess.ClinicID, f)
}

// DoctorQueue lists the acting doctor's approved and checked-in bookings
// for date, defaulting to the clinic's today.
func (s *Service) DoctorQueue(ctx context.Context, date *time.Time) ([]Appointment, error) {
	sess, err := tenancy.MustSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Require(tenancy.CapViewDoctorQueue); err != nil {
		return nil, err
	}
	if date == nil {
		c, err := s.clinics.Get(ctx, sess.ClinicID)
		if err != nil {
			return nil, err
		}
		today := c.Today(s.now())
		date = &today
	}
	return s.repo.List(ctx, sess.ClinicID, Filter{
		Date:     date,
		DoctorID: sess.UserID,
		Statuses: []Status{StatusApproved, StatusCheckedIn},
		Limit:    200,
	})
}
