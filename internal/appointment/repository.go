package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment")

	// ErrReferenceTaken means the generated reference code collided and the
	// insert can be retried with a new code.
	ErrReferenceTaken = errors.New("reference code already in use")

	// ErrStale is returned by SetStatus when the row no longer has the
	// expected status.
	ErrStale = errors.New("appointment status changed concurrently")
)

// Repository is the appointment store. Every method is scoped by clinic; a
// row belonging to another clinic is reported as not found.
type Repository interface {
	// Create inserts appt as a new booking. The store is the single source
	// of truth for slot conflicts: a clash with an active booking yields a
	// SlotTaken error naming the booking that holds the slot. An appt
	// created past Pending also gets its pending transition logged in the
	// same write.
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)
	GetByReference(ctx context.Context, clinicID uuid.UUID, code string) (*Appointment, error)
	List(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Appointment, error)
	TakenSlots(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) (map[availability.Slot]bool, error)
	// UpdateStatus moves the appointment from -> to only if it is still in
	// from. A lost race yields a conflict error naming the actual status.
	UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to Status, actorID uuid.UUID) (*Appointment, error)
}

// SlotTaken builds the rejection for a slot already held by ref.
func SlotTaken(ref string) error {
	return apperr.Constraint(apperr.CodeSlotTaken, fmt.Sprintf("slot is already booked (%s)", ref)).
		With("conflicting_reference", ref)
}

// StaleStatus builds the conflict returned when a transition lost a race.
func StaleStatus(current, requested Status) error {
	return apperr.Conflict(fmt.Sprintf("appointment is now %s", current)).
		With("current", string(current)).
		With("requested", string(requested))
}
