package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

var ErrClinicNotFound = apperr.NotFound("clinic")

// Repository reads clinics together with their booking configuration.
type Repository interface {
	Get(ctx context.Context, clinicID uuid.UUID) (*Clinic, error)
	SaveRules(ctx context.Context, clinicID uuid.UUID, rules availability.RuleSet) error
}

type PgRepository struct {
	db db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{db: q}
}

// Get loads the clinic and its rule set. A clinic without a saved
// configuration gets a disabled rule set.
func (r *PgRepository) Get(ctx context.Context, clinicID uuid.UUID) (*Clinic, error) {
	var (
		c        Clinic
		modules  []string
		enabled  *bool
		doctors  []uuid.UUID
		services []string
		slots    []string
		offDays  []int32
		holidays []time.Time
		fees     []byte
	)

	err := r.db.QueryRow(ctx, `
		SELECT c.id, c.name, c.timezone, c.active, c.modules,
		       b.enabled, b.doctor_ids, b.services, b.time_slots, b.off_days, b.holidays, b.service_fees
		FROM clinics c
		LEFT JOIN booking_configs b ON b.clinic_id = c.id
		WHERE c.id = $1
	`, clinicID).Scan(
		&c.ID, &c.Name, &c.Timezone, &c.Active, &modules,
		&enabled, &doctors, &services, &slots, &offDays, &holidays, &fees,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, fmt.Errorf("load clinic: %w", err)
	}

	for _, m := range modules {
		c.Modules = append(c.Modules, Module(m))
	}

	if enabled != nil {
		c.Rules.Enabled = *enabled
	}
	c.Rules.Doctors = doctors
	c.Rules.Services = services
	for _, s := range slots {
		c.Rules.Slots = append(c.Rules.Slots, availability.Slot(s))
	}
	for _, d := range offDays {
		c.Rules.OffDays = append(c.Rules.OffDays, time.Weekday(d))
	}
	for _, h := range holidays {
		c.Rules.Holidays = append(c.Rules.Holidays, availability.DateKey(h))
	}
	if len(fees) > 0 {
		if err := json.Unmarshal(fees, &c.Rules.Fees); err != nil {
			return nil, fmt.Errorf("decode service fees: %w", err)
		}
	}

	return &c, nil
}

// SaveRules upserts the clinic's booking configuration. Callers pass a
// normalized rule set.
func (r *PgRepository) SaveRules(ctx context.Context, clinicID uuid.UUID, rules availability.RuleSet) error {
	slots := make([]string, 0, len(rules.Slots))
	for _, s := range rules.Slots {
		slots = append(slots, string(s))
	}
	offDays := make([]int32, 0, len(rules.OffDays))
	for _, d := range rules.OffDays {
		offDays = append(offDays, int32(d))
	}
	holidays := make([]time.Time, 0, len(rules.Holidays))
	for _, h := range rules.Holidays {
		d, err := availability.ParseDate(h)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		holidays = append(holidays, d)
	}
	fees, err := json.Marshal(rules.Fees)
	if err != nil {
		return fmt.Errorf("encode service fees: %w", err)
	}
	doctors := rules.Doctors
	if doctors == nil {
		doctors = []uuid.UUID{}
	}
	services := rules.Services
	if services == nil {
		services = []string{}
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO booking_configs (clinic_id, enabled, doctor_ids, services, time_slots, off_days, holidays, service_fees, updated_at)
		SELECT id, $2, $3, $4, $5, $6, $7, $8, now() FROM clinics WHERE id = $1
		ON CONFLICT (clinic_id) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    doctor_ids = EXCLUDED.doctor_ids,
		    services = EXCLUDED.services,
		    time_slots = EXCLUDED.time_slots,
		    off_days = EXCLUDED.off_days,
		    holidays = EXCLUDED.holidays,
		    service_fees = EXCLUDED.service_fees,
		    updated_at = now()
	`, clinicID, rules.Enabled, doctors, services, slots, offDays, holidays, fees)
	if err != nil {
		return fmt.Errorf("save booking config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClinicNotFound
	}
	return nil
}
