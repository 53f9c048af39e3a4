package forms

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

func TestPgTemplatesGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, templateID := uuid.New(), uuid.New()
	specialty := "general"
	mock.ExpectQuery("FROM form_templates").
		WithArgs(templateID, clinicID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "clinic_id", "name", "specialty", "fields"}).
			AddRow(templateID, clinicID, "Intake", &specialty, []byte(`[{"id":"complaint","type":"text","required":true}]`)))

	tpl, err := NewPgTemplates(mock).Get(context.Background(), clinicID, templateID)
	require.NoError(t, err)
	assert.Equal(t, "general", tpl.Specialty)
	require.Len(t, tpl.Fields, 1)
	assert.Equal(t, FieldText, tpl.Fields[0].Type)
	assert.True(t, tpl.Fields[0].Required)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTemplatesGetOtherClinic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	otherClinic, templateID := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM form_templates").
		WithArgs(templateID, otherClinic).
		WillReturnRows(pgxmock.NewRows([]string{"id", "clinic_id", "name", "specialty", "fields"}))

	_, err = NewPgTemplates(mock).Get(context.Background(), otherClinic, templateID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTemplatesInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tpl := Template{
		ID:       uuid.New(),
		ClinicID: uuid.New(),
		Name:     "Intake",
		Fields:   []Field{{ID: "complaint", Type: FieldText, Required: true}},
	}
	mock.ExpectExec("INSERT INTO form_templates").
		WithArgs(tpl.ID, tpl.ClinicID, "Intake", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPgTemplates(mock).Insert(context.Background(), tpl))
	require.NoError(t, mock.ExpectationsWereMet())
}
