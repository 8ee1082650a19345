package domain

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used at every boundary
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string. field names the parameter in the error message.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, InvalidInput("missing %s", field)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, InvalidInput("invalid %s %q: use YYYY-MM-DD", field, value)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidateRange checks that both bounds are set and start is not after end
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return InvalidInput("start and end dates are required")
	}
	if Day(start).After(Day(end)) {
		return InvalidInput("start date %s cannot be after end date %s", FormatDate(start), FormatDate(end))
	}
	return nil
}
