package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
)

// Source identifies the assessment orders are derived from.
type Source struct {
	ClinicID     uuid.UUID
	PatientID    uuid.UUID
	AssessmentID uuid.UUID
}

// Plan derives one pending order per non-empty instruction whose department
// module is enabled for c. Instructions for disabled modules come back as
// warnings instead.
func Plan(c *clinic.Clinic, src Source, in Instructions) ([]Order, []Warning) {
	var (
		out      []Order
		warnings []Warning
	)
	for _, d := range Departments {
		text := in.For(d)
		if text == "" {
			continue
		}
		if !c.HasModule(d.Module()) {
			warnings = append(warnings, Warning{
				Department: d,
				Code:       WarningModuleDisabled,
				Message:    fmt.Sprintf("%s module is disabled for this clinic; instruction was not sent", d),
			})
			continue
		}
		out = append(out, Order{
			ID:           uuid.New(),
			ClinicID:     src.ClinicID,
			PatientID:    src.PatientID,
			AssessmentID: src.AssessmentID,
			Department:   d,
			Instruction:  text,
			Status:       StatusPending,
		})
	}
	return out, warnings
}

// Fanout plans and writes the orders with q, which must be the transaction
// that stores the assessment: either all of them commit or none do.
func Fanout(ctx context.Context, q db.Querier, c *clinic.Clinic, src Source, in Instructions) ([]Order, []Warning, error) {
	planned, warnings := Plan(c, src, in)
	for i := range planned {
		o := &planned[i]
		err := q.QueryRow(ctx, `
			INSERT INTO department_orders (id, clinic_id, patient_id, assessment_id, department, instruction, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`, o.ID, o.ClinicID, o.PatientID, o.AssessmentID, string(o.Department), o.Instruction, string(o.Status)).Scan(&o.CreatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("insert %s order: %w", o.Department, err)
		}
		orderID := o.ID
		if err := events.Append(ctx, q, events.Event{
			ClinicID: o.ClinicID,
			Type:     events.OrderCreated,
			OrderID:  &orderID,
			Payload: map[string]any{
				"department":    o.Department,
				"assessment_id": o.AssessmentID,
				"patient_id":    o.PatientID,
			},
		}); err != nil {
			return nil, nil, err
		}
	}
	for _, w := range warnings {
		if err := events.Append(ctx, q, events.Event{
			ClinicID: src.ClinicID,
			Type:     events.InstructionDropped,
			Payload: map[string]any{
				"department":    w.Department,
				"assessment_id": src.AssessmentID,
			},
		}); err != nil {
			return nil, nil, err
		}
	}
	return planned, warnings, nil
}
