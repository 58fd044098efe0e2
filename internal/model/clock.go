package model

import (
	"fmt"
	"time"
)

const (
	minutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %02d:%02d", hour, minute)
	}
	return Clock(hour*60 + minute), nil
}

// MustClock is NewClock for constants and tests.
func MustClock(hour, minute int) Clock {
	c, err := NewClock(hour, minute)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseClock parses "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewClock(t.Hour(), t.Minute())
		}
	}
	return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
}

// ClockFromMicros converts a PostgreSQL TIME value (microseconds since midnight).
func ClockFromMicros(us int64) Clock {
	return Clock(us / int64(time.Minute/time.Microsecond))
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Micros returns microseconds since midnight.
func (c Clock) Micros() int64 {
	return int64(c) * int64(time.Minute/time.Microsecond)
}

// Add shifts the clock by d. The result is not wrapped past midnight.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// Valid reports whether c lies within one day.
func (c Clock) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock on the given calendar date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// DateOf truncates t to its calendar date, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
