// Package aggregate reshapes long-format rows into date-keyed records for
// charting and buckets event dates into trailing activity windows.
//
// Everything here is pure and synchronous. Inputs come from storage readers
// that already order rows by natural key.
package aggregate

import (
	"slices"

	"github.com/go-json-experiment/json"
)

// Fields holds the named values one date has accumulated across sources.
// An absent name is a gap, never a zero.
type Fields map[string]float64

// Set assigns a value, overwriting any earlier value for name
func (f Fields) Set(name string, v float64) { f[name] = v }

// Add accumulates into name, starting from zero when absent
func (f Fields) Add(name string, v float64) { f[name] += v }

// SetInt assigns an optional integer measurement; nil leaves the field unset
func (f Fields) SetInt(name string, v *int) {
	if v != nil {
		f[name] = float64(*v)
	}
}

// SetFloat assigns an optional float measurement; nil leaves the field unset
func (f Fields) SetFloat(name string, v *float64) {
	if v != nil {
		f[name] = *v
	}
}

// Record is one calendar date with every field contributed for it
type Record struct {
	Date   string
	Fields Fields
}

// Get returns a field value and whether it was set
func (r Record) Get(name string) (float64, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// MarshalJSON renders the record flat, {"date": ..., <field>: <value>, ...},
// with keys in sorted order
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["date"] = r.Date
	return json.Marshal(flat, json.Deterministic(true))
}

// Collection is one source's rows bound to how they land in a record
type Collection struct {
	Name  string
	apply func(records map[string]Fields)
}

// From binds rows to the date they belong to and the fields they contribute.
// Rows whose date is empty are skipped.
func From[T any](name string, rows []T, dateOf func(T) string, assign func(T, Fields)) Collection {
	return Collection{
		Name: name,
		apply: func(records map[string]Fields) {
			for _, row := range rows {
				date := dateOf(row)
				if date == "" {
					continue
				}
				f, ok := records[date]
				if !ok {
					f = Fields{}
					records[date] = f
				}
				assign(row, f)
			}
		},
	}
}

// Merge pivots every collection into one record per distinct date, ascending.
// A date missing from a collection simply lacks that collection's fields.
// When two rows of one collection assign the same field of the same date
// with Set, the later row in input order wins.
func Merge(collections ...Collection) []Record {
	byDate := make(map[string]Fields)
	for _, c := range collections {
		if c.apply != nil {
			c.apply(byDate)
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	// YYYY-MM-DD sorts chronologically as text
	slices.Sort(dates)

	records := make([]Record, len(dates))
	for i, d := range dates {
		records[i] = Record{Date: d, Fields: byDate[d]}
	}
	return records
}
