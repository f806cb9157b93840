package leave

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DAY GRANULARITY - Leave dates compare by calendar day in UTC
// =============================================================================

// DayLayout is the wire layout of date-only values.
const DayLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool { return Day(a).Equal(Day(b)) }

// DayBeforeOrEqual reports whether a's day is not after b's day.
func DayBeforeOrEqual(a, b time.Time) bool { return !Day(a).After(Day(b)) }

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int { return int(Day(b).Sub(Day(a)).Hours() / 24) }

// ParseDay parses either a date-only value ("2025-03-10") or an RFC 3339
// timestamp, which is how the Backend Service serializes dates.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// FormatDay formats t as YYYY-MM-DD, or "" for the zero time.
func FormatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DayLayout)
}
