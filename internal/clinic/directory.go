package clinic

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

// PgDirectory answers membership questions about a clinic's patients and
// staff. Rows of other clinics never match.
type PgDirectory struct {
	db db.Querier
}

func NewPgDirectory(q db.Querier) *PgDirectory {
	return &PgDirectory{db: q}
}

func (d *PgDirectory) PatientInClinic(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := d.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patients WHERE id = $1 AND clinic_id = $2
		)
	`, patientID, clinicID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return ok, nil
}

// DoctorInClinic matches active staff holding the DOCTOR role.
func (d *PgDirectory) DoctorInClinic(ctx context.Context, clinicID, doctorID uuid.UUID) (bool, error) {
	var ok bool
	err := d.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff
			WHERE id = $1 AND clinic_id = $2 AND active AND 'DOCTOR' = ANY(roles)
		)
	`, doctorID, clinicID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check doctor: %w", err)
	}
	return ok, nil
}
