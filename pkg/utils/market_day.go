package utils

import (
	"time"
)

// IsMarketDay reports whether the exchange trades on the calendar date of t.
// Weekends, 1 May and the given holidays (YYYY-MM-DD) are closed.
func IsMarketDay(t time.Time, holidays []string) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if t.Month() == time.May && t.Day() == 1 {
		return false
	}
	date := FormatDate(t)
	for _, h := range holidays {
		if h == date {
			return false
		}
	}
	return true
}

// PreviousMarketDay returns the closest market day strictly before t.
func PreviousMarketDay(t time.Time, holidays []string) time.Time {
	prev := t.AddDate(0, 0, -1)
	// a closure never spans more than a few weeks
	for i := 0; i < 30 && !IsMarketDay(prev, holidays); i++ {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}
