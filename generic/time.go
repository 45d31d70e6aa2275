package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CLOCK TIME - "HH:MM" time of day (minutes since midnight)
// =============================================================================

// ClockTime is a wall-clock time of day without a date.
// Shift ends, sign-outs and surge windows are all expressed this way.
type ClockTime struct {
	Hour   int
	Minute int
}

const (
	ClockLayout = "15:04"
	DateLayout  = "2006-01-02"
)

// ParseClockTime parses "HH:MM" (24h). Single-digit hours ("9:05") are accepted.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || len(parts[1]) != 2 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// ClockOf extracts the time of day from t.
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

func (c ClockTime) MinutesOfDay() int { return c.Hour*60 + c.Minute }

// String renders zero-padded "HH:MM" so that lexicographic order equals time order.
func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// =============================================================================
// ISO DATES
// =============================================================================

// ParseDate parses "YYYY-MM-DD" in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders t as "YYYY-MM-DD".
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// MinutesBetween returns whole minutes from start to end (negative if end is earlier).
func MinutesBetween(start, end time.Time) int {
	return int(end.Sub(start) / time.Minute)
}
