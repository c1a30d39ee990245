// Package calendar derives calendar dates in a fixed reference timezone.
//
// Dates are ISO-8601 "YYYY-MM-DD" strings throughout the repository, so
// lexicographic order equals chronological order.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // reference zone must resolve on hosts without zoneinfo
)

// Layout is the date format used for every stored and aggregated date
const Layout = "2006-01-02"

// DefaultZone is the reference timezone used when none is configured
const DefaultZone = "America/New_York"

// LoadZone resolves a timezone name, defaulting to DefaultZone
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// Day returns the calendar date of instant t as seen in loc
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

// Today returns the current calendar date in loc
func Today(now func() time.Time, loc *time.Location) string {
	if now == nil {
		now = time.Now
	}
	return Day(now(), loc)
}

// Parse parses a date string, rejecting anything but YYYY-MM-DD
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(Layout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	return t, nil
}

// AddDays shifts a date by n calendar days
func AddDays(date string, n int) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}
	// date arithmetic happens at UTC midnight, so DST never moves a day
	return t.AddDate(0, 0, n).Format(Layout), nil
}

// Window returns the n calendar dates ending at and including today, oldest first
func Window(today string, n int) ([]string, error) {
	end, err := Parse(today)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	dates := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		dates = append(dates, end.AddDate(0, 0, -i).Format(Layout))
	}
	return dates, nil
}

// StartOfDay returns the instant of local midnight on date in loc
func StartOfDay(date string, loc *time.Location) (time.Time, error) {
	t, err := Parse(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
