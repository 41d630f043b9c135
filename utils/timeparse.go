package utils

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeHHMM validates a wall-clock time string and returns it in
// zero-padded "HH:MM" form. Empty or whitespace-only input normalizes to nil
// (meaning "not filled in").
func NormalizeHHMM(s string) (*string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", trimmed)
	if err != nil {
		// accept single-digit hours like "7:30"
		t, err = time.Parse("3:04", trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q, expected HH:MM", s)
		}
	}
	out := t.Format("15:04")
	return &out, nil
}

// ParseDate parses a strict YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseMonth parses a strict YYYY-MM month designator.
func ParseMonth(s string) (year int, month int, err error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t.Year(), int(t.Month()), nil
}

// MonthRange returns the half-open [first day, first day of next month) span.
func MonthRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MinutesToHHMM renders minutes-after-midnight as "HH:MM".
func MinutesToHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// HHMMToMinutes parses "HH:MM" into minutes after midnight.
func HHMMToMinutes(s string) (int, error) {
	normalized, err := NormalizeHHMM(s)
	if err != nil {
		return 0, err
	}
	if normalized == nil {
		return 0, fmt.Errorf("empty time")
	}
	t, _ := time.Parse("15:04", *normalized)
	return t.Hour()*60 + t.Minute(), nil
}
