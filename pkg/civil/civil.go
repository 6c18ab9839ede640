// Package civil does date-only arithmetic in organization-local time.
// Civil dates are represented as time.Time values at UTC midnight so they
// compare and persist identically across dialects.
package civil

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

var mondayWeek = &now.Config{WeekStartDay: time.Monday}

// Date returns the calendar date of t, as seen in t's location, at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of instant in loc.
func Today(instant time.Time, loc *time.Location) time.Time {
	return Date(instant.In(loc))
}

// WeekStart returns the Monday on or before date.
func WeekStart(date time.Time) time.Time {
	return mondayWeek.With(Date(date)).BeginningOfWeek()
}

// WeekRange returns [Monday, next Monday) for the week containing date.
func WeekRange(date time.Time) (time.Time, time.Time) {
	start := WeekStart(date)
	return start, start.AddDate(0, 0, 7)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses HH:MM (24h).
func ParseClock(value string) (Clock, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock %q: %w", value, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// At resolves clock on the civil date in loc. time.Date normalises wall
// times that fall in a DST gap.
func At(date time.Time, clock Clock, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour, clock.Minute, 0, 0, loc)
}
