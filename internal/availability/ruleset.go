package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

// RuleSet is a clinic's booking configuration. It is read-only to the
// scheduling engine; only clinic admins replace it.
type RuleSet struct {
	Enabled  bool             `json:"enabled"`
	Doctors  []uuid.UUID      `json:"doctors"`
	Services []string         `json:"services"`
	Slots    []Slot           `json:"time_slots"`
	OffDays  []time.Weekday   `json:"off_days"`
	Holidays []string         `json:"holidays"`
	Fees     map[string]int64 `json:"service_fees,omitempty"`
}

// Request is a candidate booking checked against the rule set.
type Request struct {
	DoctorID uuid.UUID
	Date     time.Time
	Time     string
	Service  string
}

// Booking is the normalized tuple returned when a request is bookable.
type Booking struct {
	DoctorID uuid.UUID
	Date     time.Time
	Time     Slot
	Service  string
}

// IsBookable checks req against the rules in a fixed order and stops at the
// first failure, so callers always see the same reason for the same input.
// It performs no I/O.
func (rs RuleSet) IsBookable(req Request) (Booking, error) {
	if !rs.Enabled {
		return Booking{}, apperr.Constraint(apperr.CodeBookingDisabled, "online booking is disabled for this clinic")
	}
	if !rs.HasDoctor(req.DoctorID) {
		return Booking{}, apperr.Constraint(apperr.CodeDoctorNotAvailable, "doctor is not available for booking")
	}
	service := strings.TrimSpace(req.Service)
	if !rs.OffersService(service) {
		return Booking{}, apperr.Constraint(apperr.CodeServiceNotOffered, fmt.Sprintf("service %q is not offered", req.Service))
	}
	slot, err := ParseSlot(req.Time)
	if err != nil || !rs.HasSlot(slot) {
		return Booking{}, apperr.Constraint(apperr.CodeInvalidSlot, fmt.Sprintf("%q is not a bookable time slot", req.Time))
	}
	if err := rs.CheckOpen(req.Date); err != nil {
		return Booking{}, err
	}
	return Booking{DoctorID: req.DoctorID, Date: dateOnly(req.Date), Time: slot, Service: service}, nil
}

// CheckOpen rejects off-days and holidays.
func (rs RuleSet) CheckOpen(date time.Time) error {
	for _, d := range rs.OffDays {
		if date.Weekday() == d {
			return apperr.Constraint(apperr.CodeClinicClosed, fmt.Sprintf("clinic is closed on %s", d))
		}
	}
	key := DateKey(date)
	for _, h := range rs.Holidays {
		if h == key {
			return apperr.Constraint(apperr.CodeClinicClosed, fmt.Sprintf("clinic is closed on %s", key))
		}
	}
	return nil
}

func (rs RuleSet) HasDoctor(id uuid.UUID) bool {
	for _, d := range rs.Doctors {
		if d == id {
			return true
		}
	}
	return false
}

func (rs RuleSet) OffersService(name string) bool {
	for _, s := range rs.Services {
		if s == name {
			return true
		}
	}
	return false
}

func (rs RuleSet) HasSlot(slot Slot) bool {
	for _, s := range rs.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// FeeFor returns the configured fee for service in minor units, or zero.
func (rs RuleSet) FeeFor(service string) int64 {
	return rs.Fees[service]
}

// SlotStatus is one row of the availability picker.
type SlotStatus struct {
	Time     Slot        `json:"time"`
	Bookable bool        `json:"bookable"`
	Reason   apperr.Code `json:"reason,omitempty"`
}

// Picker lists every configured slot for the doctor, date and service with a
// bookable flag. taken holds slots already held by active appointments.
func (rs RuleSet) Picker(doctorID uuid.UUID, date time.Time, service string, taken map[Slot]bool) []SlotStatus {
	out := make([]SlotStatus, 0, len(rs.Slots))
	for _, slot := range rs.Slots {
		st := SlotStatus{Time: slot}
		_, err := rs.IsBookable(Request{DoctorID: doctorID, Date: date, Time: string(slot), Service: service})
		switch {
		case err != nil:
			st.Reason = apperr.CodeOf(err)
		case taken[slot]:
			st.Reason = apperr.CodeSlotTaken
		default:
			st.Bookable = true
		}
		out = append(out, st)
	}
	return out
}

// Normalize returns a cleaned copy: slots parsed to 24-hour form, deduplicated
// and sorted; services trimmed and deduplicated; off-days and holidays
// validated and sorted.
func (rs RuleSet) Normalize() (RuleSet, error) {
	out := RuleSet{Enabled: rs.Enabled, Fees: map[string]int64{}}

	seenDoctor := map[uuid.UUID]bool{}
	for _, d := range rs.Doctors {
		if d == uuid.Nil {
			return RuleSet{}, apperr.Validation("doctor id must not be empty")
		}
		if !seenDoctor[d] {
			seenDoctor[d] = true
			out.Doctors = append(out.Doctors, d)
		}
	}

	seenService := map[string]bool{}
	for _, s := range rs.Services {
		name := strings.TrimSpace(s)
		if name == "" {
			return RuleSet{}, apperr.Validation("service name must not be empty")
		}
		if !seenService[name] {
			seenService[name] = true
			out.Services = append(out.Services, name)
		}
	}

	seenSlot := map[Slot]bool{}
	for _, raw := range rs.Slots {
		slot, err := ParseSlot(string(raw))
		if err != nil {
			return RuleSet{}, apperr.Validation(err.Error())
		}
		if !seenSlot[slot] {
			seenSlot[slot] = true
			out.Slots = append(out.Slots, slot)
		}
	}
	// zero-padded HH:MM sorts chronologically as a string
	sort.Slice(out.Slots, func(i, j int) bool { return out.Slots[i] < out.Slots[j] })

	seenDay := map[time.Weekday]bool{}
	for _, d := range rs.OffDays {
		if d < time.Sunday || d > time.Saturday {
			return RuleSet{}, apperr.Validation(fmt.Sprintf("off day %d out of range 0..6", d))
		}
		if !seenDay[d] {
			seenDay[d] = true
			out.OffDays = append(out.OffDays, d)
		}
	}
	sort.Slice(out.OffDays, func(i, j int) bool { return out.OffDays[i] < out.OffDays[j] })

	seenHoliday := map[string]bool{}
	for _, h := range rs.Holidays {
		d, err := ParseDate(h)
		if err != nil {
			return RuleSet{}, apperr.Validation(err.Error())
		}
		key := DateKey(d)
		if !seenHoliday[key] {
			seenHoliday[key] = true
			out.Holidays = append(out.Holidays, key)
		}
	}
	sort.Strings(out.Holidays)

	for service, fee := range rs.Fees {
		name := strings.TrimSpace(service)
		if !seenService[name] {
			return RuleSet{}, apperr.Validation(fmt.Sprintf("fee set for unknown service %q", service))
		}
		if fee < 0 {
			return RuleSet{}, apperr.Validation(fmt.Sprintf("fee for %q must not be negative", service))
		}
		out.Fees[name] = fee
	}

	if out.Enabled && (len(out.Slots) == 0 || len(out.Services) == 0) {
		return RuleSet{}, apperr.Validation("an enabled booking configuration needs at least one service and one time slot")
	}

	return out, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
