package utils

import (
	"time"
)

// DefaultTimeZone is the exchange time zone used when none is configured.
const DefaultTimeZone = "Asia/Seoul"

// LoadLocation loads name, falling back to a fixed KST offset when the
// tz database is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// TimeNowIn returns the current time in loc.
func TimeNowIn(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// DateOf returns the calendar date of t (in t's location) as UTC midnight.
// Ledger date columns always store this form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseDate parses a YYYY-MM-DD string into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// PrettyDate formats t for human readers, e.g. "Tue, 14 Oct 2025 09:30 KST".
func PrettyDate(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04 MST")
}
