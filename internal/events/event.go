package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

type Type string

const (
	AppointmentCreated   Type = "appointment.created"
	AppointmentApproved  Type = "appointment.approved"
	AppointmentRejected  Type = "appointment.rejected"
	AppointmentCheckedIn Type = "appointment.checked_in"
	AppointmentCancelled Type = "appointment.cancelled"
	AppointmentCompleted Type = "appointment.completed"
	AssessmentRecorded   Type = "assessment.recorded"
	OrderCreated         Type = "order.created"
	OrderCompleted       Type = "order.completed"
	InstructionDropped   Type = "order.instruction_dropped"
)

// Event is one row of the event log. Payload is marshalled as JSON.
type Event struct {
	ClinicID      uuid.UUID
	Type          Type
	AppointmentID *uuid.UUID
	OrderID       *uuid.UUID
	Payload       any
}

// Append writes ev using q, normally the transaction that made the change it
// describes, so an event exists if and only if the change committed.
func Append(ctx context.Context, q db.Querier, ev Event) error {
	var payload []byte
	if ev.Payload != nil {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("events: marshal payload: %w", err)
		}
		payload = data
	}
	_, err := q.Exec(ctx, `
		INSERT INTO event_logs (clinic_id, event_type, appointment_id, order_id, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ClinicID, string(ev.Type), ev.AppointmentID, ev.OrderID, payload)
	if err != nil {
		return fmt.Errorf("events: insert %s: %w", ev.Type, err)
	}
	return nil
}

// Entry is a stored event awaiting delivery.
type Entry struct {
	ID            int64           `json:"id"`
	ClinicID      uuid.UUID       `json:"clinic_id"`
	Type          Type            `json:"type"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	OrderID       *uuid.UUID      `json:"order_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
