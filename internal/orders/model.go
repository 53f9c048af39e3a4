package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

type Department string

const (
	DepartmentLaboratory Department = "laboratory"
	DepartmentRadiology  Department = "radiology"
	DepartmentPharmacy   Department = "pharmacy"
)

// Departments lists every department in fanout order.
var Departments = []Department{DepartmentLaboratory, DepartmentRadiology, DepartmentPharmacy}

func ParseDepartment(raw string) (Department, bool) {
	d := Department(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case DepartmentLaboratory, DepartmentRadiology, DepartmentPharmacy:
		return d, true
	}
	return "", false
}

// Module is the clinic module that gates the department.
func (d Department) Module() clinic.Module {
	return clinic.Module(d)
}

// Capability is what a session needs to complete this department's orders.
func (d Department) Capability() tenancy.Capability {
	switch d {
	case DepartmentLaboratory:
		return tenancy.CapCompleteLabOrder
	case DepartmentRadiology:
		return tenancy.CapCompleteRadiologyOrder
	case DepartmentPharmacy:
		return tenancy.CapCompletePharmacyOrder
	}
	return ""
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts an empty filter, which matches every status.
func ParseStatus(raw string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch st {
	case "", StatusPending, StatusCompleted:
		return st, true
	}
	return "", false
}

type Order struct {
	ID           uuid.UUID  `json:"id"`
	ClinicID     uuid.UUID  `json:"clinic_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	AssessmentID uuid.UUID  `json:"assessment_id"`
	Department   Department `json:"department"`
	Instruction  string     `json:"instruction"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CompletedBy  *uuid.UUID `json:"completed_by,omitempty"`
}

// Instructions are the free-text department orders written on an assessment.
type Instructions struct {
	Laboratory string `json:"laboratory,omitempty"`
	Radiology  string `json:"radiology,omitempty"`
	Pharmacy   string `json:"pharmacy,omitempty"`
}

func (in Instructions) For(d Department) string {
	switch d {
	case DepartmentLaboratory:
		return strings.TrimSpace(in.Laboratory)
	case DepartmentRadiology:
		return strings.TrimSpace(in.Radiology)
	case DepartmentPharmacy:
		return strings.TrimSpace(in.Pharmacy)
	}
	return ""
}

// Warning reports an instruction that was not turned into an order.
type Warning struct {
	Department Department `json:"department"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
}

const WarningModuleDisabled = "ModuleDisabled"
