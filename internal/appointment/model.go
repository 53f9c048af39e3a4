package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCheckedIn Status = "checked_in"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCheckedIn, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// HoldsSlot reports whether an appointment in this status occupies its slot.
func (s Status) HoldsSlot() bool {
	return s != StatusRejected && s != StatusCancelled
}

// Source records where a booking came from. Only billing reacts to it.
type Source string

const (
	SourcePatientPortal Source = "patient-portal"
	SourceReception     Source = "reception"
	SourcePublicLink    Source = "public-link"
	SourceWalkIn        Source = "walk-in"
)

func (s Source) Valid() bool {
	switch s {
	case SourcePatientPortal, SourceReception, SourcePublicLink, SourceWalkIn:
		return true
	}
	return false
}

type Appointment struct {
	ID            uuid.UUID         `json:"id"`
	ClinicID      uuid.UUID         `json:"clinic_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	DoctorID      uuid.UUID         `json:"doctor_id"`
	Date          time.Time         `json:"-"`
	Time          availability.Slot `json:"time"`
	Service       string            `json:"service"`
	Status        Status            `json:"status"`
	Source        Source            `json:"source"`
	ReferenceCode string            `json:"reference_code"`
	Fee           int64             `json:"fee"`
	CreatedBy     uuid.UUID         `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Filter narrows clinic listings. Zero values mean "any".
type Filter struct {
	Date      *time.Time
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Statuses  []Status
	Limit     int
	Offset    int
}
