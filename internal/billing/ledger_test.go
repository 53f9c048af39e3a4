package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

func TestPgLedger(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := NewPgLedger(mock)
	clinicID, patientID, related := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO invoices").
		WithArgs(pgxmock.AnyArg(), clinicID, patientID, related, "Consultation", int64(15000), "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	inv, err := ledger.CreateInvoice(context.Background(), InvoiceRequest{
		ClinicID: clinicID, PatientID: patientID, RelatedID: related,
		Service: "Consultation", Amount: 15000, Status: InvoicePending,
	})
	require.NoError(t, err)
	assert.Equal(t, now, inv.CreatedAt)

	mock.ExpectQuery("FROM invoices").
		WithArgs(clinicID, related).
		WillReturnRows(pgxmock.NewRows([]string{"id", "clinic_id", "patient_id", "related_id", "service", "amount_minor", "status", "created_at"}).
			AddRow(inv.ID, clinicID, patientID, related, "Consultation", int64(15000), "pending", now))
	found, err := ledger.FindByRelated(context.Background(), clinicID, related)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, InvoicePending, found[0].Status)

	mock.ExpectExec("UPDATE invoices").
		WithArgs(inv.ID, clinicID, "cancelled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, ledger.SetInvoiceStatus(context.Background(), clinicID, inv.ID, InvoiceCancelled))

	otherClinic := uuid.New()
	mock.ExpectExec("UPDATE invoices").
		WithArgs(inv.ID, otherClinic, "paid").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = ledger.SetInvoiceStatus(context.Background(), otherClinic, inv.ID, InvoicePaid)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, mock.ExpectationsWereMet())
}
