package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

type Invoice struct {
	ID        uuid.UUID     `json:"id"`
	ClinicID  uuid.UUID     `json:"clinic_id"`
	PatientID uuid.UUID     `json:"patient_id"`
	RelatedID uuid.UUID     `json:"related_id"`
	Service   string        `json:"service"`
	Amount    int64         `json:"amount"`
	Status    InvoiceStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type InvoiceRequest struct {
	ClinicID  uuid.UUID
	PatientID uuid.UUID
	RelatedID uuid.UUID
	Service   string
	Amount    int64
	Status    InvoiceStatus
}

// Invoicer is the billing collaborator. Amounts are set once at creation;
// afterwards only the status moves.
type Invoicer interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	SetInvoiceStatus(ctx context.Context, clinicID, id uuid.UUID, status InvoiceStatus) error
	FindByRelated(ctx context.Context, clinicID, relatedID uuid.UUID) ([]Invoice, error)
}

// PgLedger keeps invoices in the clinic database.
type PgLedger struct {
	db db.Querier
}

func NewPgLedger(q db.Querier) *PgLedger {
	return &PgLedger{db: q}
}

func (l *PgLedger) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	inv := &Invoice{
		ID:        uuid.New(),
		ClinicID:  req.ClinicID,
		PatientID: req.PatientID,
		RelatedID: req.RelatedID,
		Service:   req.Service,
		Amount:    req.Amount,
		Status:    req.Status,
	}
	err := l.db.QueryRow(ctx, `
		INSERT INTO invoices (id, clinic_id, patient_id, related_id, service, amount_minor, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, inv.ID, inv.ClinicID, inv.PatientID, inv.RelatedID, inv.Service, inv.Amount, string(inv.Status)).Scan(&inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	return inv, nil
}

func (l *PgLedger) SetInvoiceStatus(ctx context.Context, clinicID, id uuid.UUID, status InvoiceStatus) error {
	tag, err := l.db.Exec(ctx, `
		UPDATE invoices
		SET status = $3, updated_at = now()
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID, string(status))
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("invoice")
	}
	return nil
}

func (l *PgLedger) FindByRelated(ctx context.Context, clinicID, relatedID uuid.UUID) ([]Invoice, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, clinic_id, patient_id, related_id, service, amount_minor, status, created_at
		FROM invoices
		WHERE clinic_id = $1 AND related_id = $2
		ORDER BY created_at
	`, clinicID, relatedID)
	if err != nil {
		return nil, fmt.Errorf("find invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var (
			inv    Invoice
			status string
		)
		if err := rows.Scan(&inv.ID, &inv.ClinicID, &inv.PatientID, &inv.RelatedID, &inv.Service, &inv.Amount, &status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.Status = InvoiceStatus(status)
		out = append(out, inv)
	}
	return out, rows.Err()
}
