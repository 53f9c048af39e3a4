package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
)

var (
	ErrOrderNotFound = apperr.NotFound("order")

	// ErrNotPending is returned by MarkCompleted when the order was already
	// completed by the time the update ran.
	ErrNotPending = errors.New("order is not pending")
)

type Repository interface {
	Get(ctx context.Context, clinicID, id uuid.UUID) (*Order, error)
	ListByDepartment(ctx context.Context, clinicID uuid.UUID, d Department, status Status) ([]Order, error)
	ListByAssessment(ctx context.Context, clinicID, assessmentID uuid.UUID) ([]Order, error)
	// ListByDoctor lists orders from the doctor's assessments, newest
	// first. An empty status matches all.
	ListByDoctor(ctx context.Context, clinicID, doctorID uuid.UUID, status Status) ([]Order, error)
	MarkCompleted(ctx context.Context, clinicID, id, actorID uuid.UUID) (*Order, error)
}

const (
	orderColumns = `id, clinic_id, patient_id, assessment_id, department, instruction, status,
	created_at, completed_at, completed_by`

	doctorOrderLimit = 200
)

type PgRepository struct {
	db db.TxBeginner
}

func NewPgRepository(pool db.TxBeginner) *PgRepository {
	return &PgRepository{db: pool}
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		dept   string
		status string
	)
	err := row.Scan(&o.ID, &o.ClinicID, &o.PatientID, &o.AssessmentID, &dept, &o.Instruction, &status,
		&o.CreatedAt, &o.CompletedAt, &o.CompletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Department = Department(dept)
	o.Status = Status(status)
	return &o, nil
}

func (r *PgRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*Order, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM department_orders
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	return scanOrder(row)
}

func (r *PgRepository) ListByDepartment(ctx context.Context, clinicID uuid.UUID, d Department, status Status) ([]Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM department_orders
		WHERE clinic_id = $1 AND department = $2 AND status = $3
		ORDER BY created_at
	`, clinicID, string(d), string(status))
}

func (r *PgRepository) ListByAssessment(ctx context.Context, clinicID, assessmentID uuid.UUID) ([]Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM department_orders
		WHERE clinic_id = $1 AND assessment_id = $2
		ORDER BY created_at
	`, clinicID, assessmentID)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, clinicID, doctorID uuid.UUID, status Status) ([]Order, error) {
	query := `
		SELECT o.id, o.clinic_id, o.patient_id, o.assessment_id, o.department, o.instruction, o.status,
		       o.created_at, o.completed_at, o.completed_by
		FROM department_orders o
		JOIN assessments a ON a.id = o.assessment_id AND a.clinic_id = o.clinic_id
		WHERE o.clinic_id = $1 AND a.doctor_id = $2`
	args := []any{clinicID, doctorID}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND o.status = $%d", len(args))
	}
	args = append(args, doctorOrderLimit)
	query += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d", len(args))
	return r.list(ctx, query, args...)
}

func (r *PgRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// MarkCompleted advances a pending order and logs the event in one
// transaction. Completed orders are never reverted.
func (r *PgRepository) MarkCompleted(ctx context.Context, clinicID, id, actorID uuid.UUID) (*Order, error) {
	var updated *Order
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE department_orders
			SET status = 'completed',
			    completed_at = $3,
			    completed_by = $4
			WHERE id = $1 AND clinic_id = $2 AND status = 'pending'
			RETURNING `+orderColumns, id, clinicID, time.Now().UTC(), actorID)
		o, err := scanOrder(row)
		if errors.Is(err, ErrOrderNotFound) {
			return ErrNotPending
		}
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		updated = o
		orderID := o.ID
		return events.Append(ctx, tx, events.Event{
			ClinicID: o.ClinicID,
			Type:     events.OrderCompleted,
			OrderID:  &orderID,
			Payload: map[string]any{
				"department": o.Department,
				"actor_id":   actorID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
