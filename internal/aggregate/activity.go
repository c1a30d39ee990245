package aggregate

import "github.com/jgoulah/dayboard/internal/calendar"

// HeatmapDays is the length of the activity heatmap window
const HeatmapDays = 28

// ActivitySet holds the dates on which at least one qualifying event happened
type ActivitySet map[string]struct{}

// NewActivitySet builds a set from dates
func NewActivitySet(dates ...string) ActivitySet {
	s := make(ActivitySet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s ActivitySet) Add(date string) { s[date] = struct{}{} }

func (s ActivitySet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

// ActivityDay is one heatmap cell
type ActivityDay struct {
	Date   string `json:"date"`
	Active bool   `json:"active"`
}

// Trailing returns exactly days entries ending at and including today, oldest
// first. No date after today is produced and no week alignment is applied.
func Trailing(today string, days int, set ActivitySet) ([]ActivityDay, error) {
	dates, err := calendar.Window(today, days)
	if err != nil {
		return nil, err
	}
	out := make([]ActivityDay, len(dates))
	for i, d := range dates {
		out[i] = ActivityDay{Date: d, Active: set.Has(d)}
	}
	return out, nil
}

// ActiveCount returns how many days in the window are active
func ActiveCount(days []ActivityDay) int {
	n := 0
	for _, d := range days {
		if d.Active {
			n++
		}
	}
	return n
}
