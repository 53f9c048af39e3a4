package events

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

func (s *Store) FetchPending(ctx context.Context, limit int32) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, event_type, appointment_id, order_id, payload, created_at
		FROM event_logs
		WHERE delivered_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			typ     string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.ClinicID, &typ, &e.AppointmentID, &e.OrderID, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan: %w", err)
		}
		e.Type = Type(typ)
		if len(payload) > 0 {
			e.Payload = append([]byte(nil), payload...)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE event_logs
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
