package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

var ErrTemplateNotFound = apperr.NotFound("form template")

// TemplateSource supplies published templates for a clinic.
type TemplateSource interface {
	Get(ctx context.Context, clinicID, templateID uuid.UUID) (*Template, error)
}

type PgTemplates struct {
	db db.Querier
}

func NewPgTemplates(q db.Querier) *PgTemplates {
	return &PgTemplates{db: q}
}

func (r *PgTemplates) Get(ctx context.Context, clinicID, templateID uuid.UUID) (*Template, error) {
	var (
		t         Template
		specialty *string
		fields    []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialty, fields
		FROM form_templates
		WHERE id = $1 AND clinic_id = $2 AND status = 'published'
	`, templateID, clinicID).Scan(&t.ID, &t.ClinicID, &t.Name, &specialty, &fields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("load form template: %w", err)
	}
	if specialty != nil {
		t.Specialty = *specialty
	}
	if err := json.Unmarshal(fields, &t.Fields); err != nil {
		return nil, fmt.Errorf("decode template fields: %w", err)
	}
	return &t, nil
}

// Insert stores a published template. Used by the seeder.
func (r *PgTemplates) Insert(ctx context.Context, t Template) error {
	if err := CheckFields(t.Fields); err != nil {
		return err
	}
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("encode template fields: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO form_templates (id, clinic_id, name, specialty, fields)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, t.ID, t.ClinicID, t.Name, t.Specialty, fields)
	if err != nil {
		return fmt.Errorf("insert form template: %w", err)
	}
	return nil
}
