package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
)

const (
	activeSlotConstraint = "appointments_active_slot_key"
	referenceConstraint  = "appointments_reference_key"

	selectColumns = `id, clinic_id, patient_id, doctor_id, appointment_date, time_slot, service,
		status, source, reference_code, fee_minor, created_by, created_at, updated_at`
)

var errSlotRace = errors.New("active slot unique violation")

type PgRepository struct {
	db db.TxBeginner
}

func NewPgRepository(pool db.TxBeginner) *PgRepository {
	return &PgRepository{db: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		slot   string
		status string
		source string
	)
	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&slot,
		&a.Service,
		&status,
		&source,
		&a.ReferenceCode,
		&a.Fee,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Time = availability.Slot(slot)
	a.Status = Status(status)
	a.Source = Source(source)
	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, appt *Appointment) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ref, err := activeHolder(ctx, tx, appt.ClinicID, appt.DoctorID, appt.Date, appt.Time)
		if err != nil {
			return err
		}
		if ref != "" {
			return SlotTaken(ref)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO appointments (id, clinic_id, patient_id, doctor_id, appointment_date, time_slot, service,
			                          status, source, reference_code, fee_minor, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
			RETURNING created_at, updated_at
		`,
			appt.ID, appt.ClinicID, appt.PatientID, appt.DoctorID, appt.Date, string(appt.Time), appt.Service,
			string(appt.Status), string(appt.Source), appt.ReferenceCode, appt.Fee, appt.CreatedBy,
		).Scan(&appt.CreatedAt, &appt.UpdatedAt)
		if err != nil {
			switch {
			case db.IsUniqueViolation(err, activeSlotConstraint):
				return errSlotRace
			case db.IsUniqueViolation(err, referenceConstraint):
				return ErrReferenceTaken
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		err = events.Append(ctx, tx, events.Event{
			ClinicID:      appt.ClinicID,
			Type:          events.AppointmentCreated,
			AppointmentID: &appt.ID,
			Payload: map[string]any{
				"reference_code": appt.ReferenceCode,
				"doctor_id":      appt.DoctorID,
				"patient_id":     appt.PatientID,
				"date":           availability.DateKey(appt.Date),
				"time":           appt.Time,
				"source":         appt.Source,
			},
		})
		if err != nil || appt.Status == StatusPending {
			return err
		}
		// born past pending (walk-ins): log the implied transition in the same tx
		return events.Append(ctx, tx, TransitionEvent(appt, StatusPending, appt.CreatedBy))
	})
	if errors.Is(err, errSlotRace) {
		// the concurrent winner has committed by now
		ref, lookupErr := activeHolder(ctx, r.db, appt.ClinicID, appt.DoctorID, appt.Date, appt.Time)
		if lookupErr != nil {
			return lookupErr
		}
		return SlotTaken(ref)
	}
	return err
}

func activeHolder(ctx context.Context, q db.Querier, clinicID, doctorID uuid.UUID, date time.Time, slot availability.Slot) (string, error) {
	var ref string
	err := q.QueryRow(ctx, `
		SELECT reference_code
		FROM appointments
		WHERE clinic_id = $1 AND doctor_id = $2 AND appointment_date = $3 AND time_slot = $4
		  AND status NOT IN ('rejected', 'cancelled')
		LIMIT 1
	`, clinicID, doctorID, date, string(slot)).Scan(&ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("check slot holder: %w", err)
	}
	return ref, nil
}

func (r *PgRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanAppointment(row)
}

func (r *PgRepository) GetByReference(ctx context.Context, clinicID uuid.UUID, code string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE reference_code = $1 AND clinic_id = $2
	`, code, clinicID)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Appointment, error) {
	where := []string{"clinic_id = $1"}
	args := []any{clinicID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Date != nil {
		add("appointment_date = $%d", *f.Date)
	}
	if f.DoctorID != uuid.Nil {
		add("doctor_id = $%d", f.DoctorID)
	}
	if f.PatientID != uuid.Nil {
		add("patient_id = $%d", f.PatientID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE %s
		ORDER BY appointment_date, time_slot, created_at
		LIMIT $%d OFFSET $%d
	`, selectColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PgRepository) TakenSlots(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) (map[availability.Slot]bool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT time_slot
		FROM appointments
		WHERE clinic_id = $1 AND doctor_id = $2 AND appointment_date = $3
		  AND status NOT IN ('rejected', 'cancelled')
	`, clinicID, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list taken slots: %w", err)
	}
	defer rows.Close()

	taken := make(map[availability.Slot]bool)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scan taken slot: %w", err)
		}
		taken[availability.Slot(slot)] = true
	}
	return taken, rows.Err()
}

func (r *PgRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to Status, actorID uuid.UUID) (*Appointment, error) {
	var updated *Appointment
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		a, err := SetStatus(ctx, tx, clinicID, id, from, to)
		if err != nil {
			return err
		}
		updated = a
		return events.Append(ctx, tx, TransitionEvent(a, from, actorID))
	})
	if errors.Is(err, ErrStale) {
		current, getErr := r.Get(ctx, clinicID, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, StaleStatus(current.Status, to)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// LockForUpdate reads the appointment and row-locks it for the rest of the
// transaction q belongs to.
func LockForUpdate(ctx context.Context, q db.Querier, clinicID, id uuid.UUID) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
		FOR UPDATE
	`, id, clinicID)
	return scanAppointment(row)
}

// SetStatus is the compare-and-swap on status. It returns ErrStale when the
// row is not in from.
func SetStatus(ctx context.Context, q db.Querier, clinicID, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND clinic_id = $2
		  AND status = $4
		RETURNING `+selectColumns, id, clinicID, string(to), string(from))
	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStale
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return a, nil
}

// TransitionEvent describes a committed status change for the event log.
func TransitionEvent(a *Appointment, from Status, actorID uuid.UUID) events.Event {
	id := a.ID
	return events.Event{
		ClinicID:      a.ClinicID,
		Type:          events.Type("appointment." + string(a.Status)),
		AppointmentID: &id,
		Payload: map[string]any{
			"from":           from,
			"to":             a.Status,
			"actor_id":       actorID,
			"reference_code": a.ReferenceCode,
			"patient_id":     a.PatientID,
			"doctor_id":      a.DoctorID,
		},
	}
}
