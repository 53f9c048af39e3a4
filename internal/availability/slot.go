package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot is a time of day in 24-hour "HH:MM" form.
type Slot string

// ParseSlot accepts "9:00", "09:00", "9:00 AM" and "02:30 pm" and returns
// the normalized 24-hour value.
func ParseSlot(raw string) (Slot, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	meridiem := ""
	switch {
	case strings.HasSuffix(s, "AM"):
		meridiem, s = "AM", strings.TrimSpace(strings.TrimSuffix(s, "AM"))
	case strings.HasSuffix(s, "PM"):
		meridiem, s = "PM", strings.TrimSpace(strings.TrimSuffix(s, "PM"))
	}

	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return "", fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: bad hour", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid time %q: bad minute", raw)
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return "", fmt.Errorf("invalid time %q: bad hour", raw)
		}
	default:
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("invalid time %q: bad hour", raw)
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	}

	return Slot(fmt.Sprintf("%02d:%02d", hour, minute)), nil
}

func (s Slot) String() string { return string(s) }

const dateLayout = "2006-01-02"

// ParseDate parses a calendar date. The result is midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return d, nil
}

// DateKey formats the calendar part of t, ignoring its clock and zone offset.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}
