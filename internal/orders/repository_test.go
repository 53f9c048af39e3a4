package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "clinic_id", "patient_id", "assessment_id", "department", "instruction", "status",
	"created_at", "completed_at", "completed_by",
}

func TestPgMarkCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, clinicID, actor := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE department_orders").
		WithArgs(id, clinicID, pgxmock.AnyArg(), actor).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(
			id, clinicID, uuid.New(), uuid.New(), "laboratory", "CBC", "completed", now, &now, &actor,
		))
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(clinicID, "order.completed", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	// pgx.BeginFunc rolls back after commit too; the call is a no-op.
	mock.ExpectRollback()

	o, err := NewPgRepository(mock).MarkCompleted(context.Background(), clinicID, id, actor)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, DepartmentLaboratory, o.Department)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMarkCompletedNotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, clinicID, actor := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE department_orders").
		WithArgs(id, clinicID, pgxmock.AnyArg(), actor).
		WillReturnRows(pgxmock.NewRows(orderCols))
	mock.ExpectRollback().Times(2)

	_, err = NewPgRepository(mock).MarkCompleted(context.Background(), clinicID, id, actor)
	assert.ErrorIs(t, err, ErrNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMarkCompletedRollsBackWhenEventFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, clinicID, actor := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE department_orders").
		WithArgs(id, clinicID, pgxmock.AnyArg(), actor).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(
			id, clinicID, uuid.New(), uuid.New(), "pharmacy", "Amoxicillin", "completed", now, &now, &actor,
		))
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(clinicID, "order.completed", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback().Times(2)

	_, err = NewPgRepository(mock).MarkCompleted(context.Background(), clinicID, id, actor)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListByDoctorJoinsAssessments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, doctor, id := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery("JOIN assessments a").
		WithArgs(clinicID, doctor, "completed", 200).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(
			id, clinicID, uuid.New(), uuid.New(), "radiology", "Chest X-ray", "completed", time.Now(), nil, nil,
		))

	list, err := NewPgRepository(mock).ListByDoctor(context.Background(), clinicID, doctor, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, DepartmentRadiology, list[0].Department)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListByDoctorWithoutStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, doctor := uuid.New(), uuid.New()
	mock.ExpectQuery("a.doctor_id = \\$2 ORDER BY").
		WithArgs(clinicID, doctor, 200).
		WillReturnRows(pgxmock.NewRows(orderCols))

	list, err := NewPgRepository(mock).ListByDoctor(context.Background(), clinicID, doctor, "")
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListByAssessment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID, assessmentID := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery("assessment_id = \\$2").
		WithArgs(clinicID, assessmentID).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(uuid.New(), clinicID, uuid.New(), assessmentID, "laboratory", "CBC", "pending", now, nil, nil).
			AddRow(uuid.New(), clinicID, uuid.New(), assessmentID, "pharmacy", "Amoxicillin", "completed", now, &now, nil))

	list, err := NewPgRepository(mock).ListByAssessment(context.Background(), clinicID, assessmentID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, StatusCompleted, list[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
