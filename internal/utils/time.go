package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04:05"
)

// DateKey formats t as a calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// TimeOfDay formats t as HH:MM:SS in loc. Zero-padded values compare lexically.
func TimeOfDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimeOfDayLayout)
}

// ParseDateKey validates a YYYY-MM-DD string.
func ParseDateKey(s string) (string, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", Invalid(CodeInvalidInput, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return d.Format(DateLayout), nil
}

// NormalizeTimeOfDay accepts H:MM:SS, HH:MM:SS or HH:MM and returns the zero-padded HH:MM:SS form.
func NormalizeTimeOfDay(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeOfDayLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeOfDayLayout), true
		}
	}
	return "", false
}

// ValidTimeOfDay reports whether s is already in the zero-padded HH:MM:SS form
// that window comparisons rely on.
func ValidTimeOfDay(s string) bool {
	n, ok := NormalizeTimeOfDay(s)
	return ok && n == s
}
