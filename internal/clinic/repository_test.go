package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

var clinicColumns = []string{
	"id", "name", "timezone", "active", "modules",
	"enabled", "doctor_ids", "services", "time_slots", "off_days", "holidays", "service_fees",
}

func TestPgRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	doctor := uuid.New()
	enabled := true
	xmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(clinicColumns).AddRow(
		clinicID, "Downtown", "Asia/Dubai", true, []string{"laboratory", "billing"},
		&enabled, []uuid.UUID{doctor}, []string{"Consultation"}, []string{"09:00", "09:30"},
		[]int32{0, 6}, []time.Time{xmas}, []byte(`{"Consultation":15000}`),
	)
	mock.ExpectQuery("SELECT c.id").WithArgs(clinicID).WillReturnRows(rows)

	c, err := NewPgRepository(mock).Get(context.Background(), clinicID)
	require.NoError(t, err)
	assert.True(t, c.HasModule(ModuleLaboratory))
	assert.False(t, c.HasModule(ModuleRadiology))
	assert.True(t, c.Rules.Enabled)
	assert.Equal(t, []availability.Slot{"09:00", "09:30"}, c.Rules.Slots)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, c.Rules.OffDays)
	assert.Equal(t, []string{"2026-12-25"}, c.Rules.Holidays)
	assert.Equal(t, int64(15000), c.Rules.FeeFor("Consultation"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	missing := uuid.New()
	mock.ExpectQuery("SELECT c.id").WithArgs(missing).WillReturnRows(pgxmock.NewRows(clinicColumns))

	_, err = NewPgRepository(mock).Get(context.Background(), missing)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPgRepositorySaveRules(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	xmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO booking_configs").
		WithArgs(clinicID, true, []uuid.UUID{}, []string{"Consultation"}, []string{"09:00"},
			[]int32{}, []time.Time{xmas}, []byte("null")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPgRepository(mock).SaveRules(context.Background(), clinicID, availability.RuleSet{
		Enabled:  true,
		Services: []string{"Consultation"},
		Slots:    []availability.Slot{"09:00"},
		Holidays: []string{"2026-12-25"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositorySaveRulesUnknownClinic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO booking_configs").
		WithArgs(pgxmock.AnyArg(), false, []uuid.UUID{}, []string{}, []string{}, []int32{}, []time.Time{}, []byte("null")).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = NewPgRepository(mock).SaveRules(context.Background(), uuid.New(), availability.RuleSet{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicToday(t *testing.T) {
	c := Clinic{Timezone: "Asia/Dubai"}
	// 22:30 UTC is already the next day in Dubai (UTC+4).
	now := time.Date(2026, 10, 20, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-21", availability.DateKey(c.Today(now)))
	assert.Equal(t, "2026-10-20", availability.DateKey(Clinic{}.Today(now)))
}
