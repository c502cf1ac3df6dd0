// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions and
// small parsing helpers.
package types

import (
	"fmt"
	"time"
)

// Date is a calendar date at day granularity, independent of time zone.
// Billing rows, summaries, and baselines are all keyed by Date.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// NewDate builds a Date from its components
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf extracts the UTC calendar date from a time
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a yyyy-mm-dd string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the date as UTC midnight
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date shifted by n calendar days
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysSince returns the number of whole days from o to d
func (d Date) DaysSince(o Date) int {
	return int(d.Time().Sub(o.Time()) / (24 * time.Hour))
}

// Before reports whether d is earlier than o
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// After reports whether d is later than o
func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d == Date{}
}

// String returns the yyyy-mm-dd representation
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// MarshalJSON encodes the date as a yyyy-mm-dd string
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a yyyy-mm-dd string
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", data)
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
