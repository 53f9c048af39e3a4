package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

func labAndPharmacyClinic() *clinic.Clinic {
	return &clinic.Clinic{
		ID:      uuid.New(),
		Active:  true,
		Modules: []clinic.Module{clinic.ModuleLaboratory, clinic.ModulePharmacy, clinic.ModuleBilling},
	}
}

func allThree() Instructions {
	return Instructions{
		Laboratory: "CBC, lipid panel",
		Radiology:  "Chest X-ray",
		Pharmacy:   "Amoxicillin 500mg",
	}
}

func TestPlanDropsDisabledDepartments(t *testing.T) {
	c := labAndPharmacyClinic()
	src := Source{ClinicID: c.ID, PatientID: uuid.New(), AssessmentID: uuid.New()}

	planned, warnings := Plan(c, src, allThree())

	require.Len(t, planned, 2)
	assert.Equal(t, DepartmentLaboratory, planned[0].Department)
	assert.Equal(t, DepartmentPharmacy, planned[1].Department)
	for _, o := range planned {
		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, src.AssessmentID, o.AssessmentID)
		assert.Equal(t, c.ID, o.ClinicID)
	}

	require.Len(t, warnings, 1)
	assert.Equal(t, DepartmentRadiology, warnings[0].Department)
	assert.Equal(t, WarningModuleDisabled, warnings[0].Code)
}

func TestPlanSkipsBlankInstructions(t *testing.T) {
	c := labAndPharmacyClinic()
	planned, warnings := Plan(c, Source{ClinicID: c.ID}, Instructions{Laboratory: "  ", Radiology: ""})
	assert.Empty(t, planned)
	assert.Empty(t, warnings)
}

func TestPlanOneOrderPerDepartment(t *testing.T) {
	c := &clinic.Clinic{Modules: []clinic.Module{clinic.ModuleLaboratory, clinic.ModuleRadiology, clinic.ModulePharmacy}}
	planned, warnings := Plan(c, Source{}, allThree())
	assert.Len(t, planned, 3)
	assert.Empty(t, warnings)

	seen := map[Department]bool{}
	for _, o := range planned {
		assert.False(t, seen[o.Department])
		seen[o.Department] = true
	}
}

func TestFanoutWritesOrdersAndEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := labAndPharmacyClinic()
	src := Source{ClinicID: c.ID, PatientID: uuid.New(), AssessmentID: uuid.New()}
	now := time.Now()

	for _, dept := range []string{"laboratory", "pharmacy"} {
		mock.ExpectQuery("INSERT INTO department_orders").
			WithArgs(pgxmock.AnyArg(), c.ID, src.PatientID, src.AssessmentID, dept, pgxmock.AnyArg(), "pending").
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
		mock.ExpectExec("INSERT INTO event_logs").
			WithArgs(c.ID, "order.created", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(c.ID, "order.instruction_dropped", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, warnings, err := Fanout(context.Background(), mock, c, src, allThree())
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, warnings, 1)
	assert.Equal(t, now, created[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseDepartment(t *testing.T) {
	d, ok := ParseDepartment(" Laboratory ")
	assert.True(t, ok)
	assert.Equal(t, DepartmentLaboratory, d)

	_, ok = ParseDepartment("cardiology")
	assert.False(t, ok)
}
