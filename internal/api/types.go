package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/assessment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/orders"
)

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"omitempty,uuid"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,max=16"`
	Service   string `json:"service" validate:"required,max=120"`
	Source    string `json:"source" validate:"omitempty,oneof=patient-portal reception walk-in"`
	Override  bool   `json:"override"`
	Fee       *int64 `json:"fee" validate:"omitempty,min=0"`
}

type TransitionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject check_in cancel"`
}

type RecordAssessmentRequest struct {
	TemplateID   string                     `json:"template_id" validate:"required,uuid"`
	Answers      map[string]json.RawMessage `json:"answers"`
	Instructions orders.Instructions        `json:"instructions"`
}

type BookingConfigRequest struct {
	Enabled  bool             `json:"enabled"`
	Doctors  []string         `json:"doctors" validate:"dive,uuid"`
	Services []string         `json:"services" validate:"dive,required,max=120"`
	Slots    []string         `json:"time_slots" validate:"dive,required"`
	OffDays  []int            `json:"off_days" validate:"dive,min=0,max=6"`
	Holidays []string         `json:"holidays" validate:"dive,datetime=2006-01-02"`
	Fees     map[string]int64 `json:"service_fees"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	ClinicID      uuid.UUID `json:"clinic_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Service       string    `json:"service"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	ReferenceCode string    `json:"reference_code"`
	Fee           int64     `json:"fee"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		ClinicID:      a.ClinicID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Date:          availability.DateKey(a.Date),
		Time:          string(a.Time),
		Service:       a.Service,
		Status:        string(a.Status),
		Source:        string(a.Source),
		ReferenceCode: a.ReferenceCode,
		Fee:           a.Fee,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toAppointmentList(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID                 `json:"doctor_id"`
	Date     string                    `json:"date"`
	Service  string                    `json:"service"`
	Slots    []availability.SlotStatus `json:"slots"`
}

type AssessmentResponse struct {
	Assessment  assessment.Assessment `json:"assessment"`
	Appointment AppointmentResponse    `json:"appointment"`
	Orders      []orders.Order         `json:"orders"`
	Warnings    []orders.Warning       `json:"warnings"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details string         `json:"details,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}
