// Package timeutil holds calendar arithmetic shared by the period builders.
// All billing time is Europe/Paris; day counts are DST-safe because they
// compare calendar dates, not 24h multiples.
package timeutil

import (
	"sync"
	"time"
)

// ParisZone is the billing timezone name.
const ParisZone = "Europe/Paris"

// MustLoadParis returns the Europe/Paris location. The tzdata is required for
// the service to function at all, so a load failure panics at startup.
var (
	parisOnce sync.Once
	parisLoc  *time.Location
)

func MustLoadParis() *time.Location {
	// Loaded once and shared: time.LoadLocation allocates a new *Location on
	// every call, and time.Time equality (map keys, ==) compares the location
	// pointer, so all billing timestamps must use the same instance.
	parisOnce.Do(func() {
		loc, err := time.LoadLocation(ParisZone)
		if err != nil {
			panic("timeutil: cannot load Europe/Paris: " + err.Error())
		}
		parisLoc = loc
	})
	return parisLoc
}

// Date truncates t to its calendar date in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetweenDates counts calendar days from the date of a to the date of b.
// Both timestamps are truncated to their date first, so two instants on the
// same day are zero days apart regardless of time of day.
func DaysBetweenDates(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// WholeDays counts whole 24h days in the interval [a, b).
func WholeDays(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// StartOfMonth returns the first instant of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// MonthStartsBetween returns every first-of-month instant in [from, to],
// inclusive on both ends, in loc.
func MonthStartsBetween(from, to time.Time, loc *time.Location) []time.Time {
	if to.Before(from) {
		return nil
	}
	m := StartOfMonth(from, loc)
	if m.Before(from) {
		m = m.AddDate(0, 1, 0)
	}
	var months []time.Time
	for ; !m.After(to); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// DateAfter reports whether a's calendar date is strictly after b's.
func DateAfter(a, b time.Time) bool {
	return Date(a).After(Date(b))
}

// DateOnOrBefore reports whether a's calendar date is on or before b's.
func DateOnOrBefore(a, b time.Time) bool {
	return !Date(a).After(Date(b))
}
