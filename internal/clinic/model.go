package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// Module is an optional feature a clinic can switch on.
type Module string

const (
	ModulePharmacy   Module = "pharmacy"
	ModuleLaboratory Module = "laboratory"
	ModuleRadiology  Module = "radiology"
	ModuleBilling    Module = "billing"
)

type Clinic struct {
	ID       uuid.UUID
	Name     string
	Timezone string
	Active   bool
	Modules  []Module
	Rules    availability.RuleSet
}

func (c Clinic) HasModule(m Module) bool {
	for _, have := range c.Modules {
		if have == m {
			return true
		}
	}
	return false
}

// Location resolves the clinic timezone, falling back to UTC.
func (c Clinic) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today is the clinic's current calendar date as midnight UTC, comparable
// with appointment dates.
func (c Clinic) Today(now time.Time) time.Time {
	local := now.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
