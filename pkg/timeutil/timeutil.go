// Package timeutil provides calendar-day helpers for learning streaks and
// audit timestamps. Learning days are counted in a single configurable
// location (UTC by default) so that streaks do not depend on server locale.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultLocation is the location learning days are counted in.
var DefaultLocation = time.UTC

// Clock returns the current time. Components accept a Clock so that tests
// can pin "now".
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Date creates a time in DefaultLocation with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, DefaultLocation)
}

// StartOfDay returns midnight of t's calendar day in DefaultLocation.
func StartOfDay(t time.Time) time.Time {
	local := t.In(DefaultLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, DefaultLocation)
}

// EndOfDay returns the last nanosecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DaysBetween returns the number of calendar days from a to b.
// The result is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	from := StartOfDay(a)
	to := StartOfDay(b)
	// Round to absorb DST shifts in non-UTC locations.
	hours := to.Sub(from).Hours()
	if hours >= 0 {
		return int((hours + 12) / 24)
	}
	return -int((-hours + 12) / 24)
}

// IsSameDay reports whether a and b fall on the same calendar day.
func IsSameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

// IsConsecutiveDay reports whether next is exactly one calendar day after prev.
func IsConsecutiveDay(prev, next time.Time) bool {
	return DaysBetween(prev, next) == 1
}

// FormatDate formats a time as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.In(DefaultLocation).Format("2006-01-02")
}

// ParseDate parses a "2006-01-02" string in DefaultLocation.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, DefaultLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatRelative formats a past time relative to now, e.g. "5 min ago".
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	default:
		days := DaysBetween(t, now)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
