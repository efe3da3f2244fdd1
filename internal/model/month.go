package model

import (
	"fmt"
	"time"
)

// Month identifies one calendar month, the unit the crawler processes
// and persists.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a "YYYY-MM" string into a Month.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the Month containing t (in UTC).
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{Year: u.Year(), Month: u.Month()}
}

// String returns the canonical "YYYY-MM" form.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day returns midnight UTC of the given day of the month.
func (m Month) Day(day int) time.Time {
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t (in UTC) falls within the month.
func (m Month) Contains(t time.Time) bool {
	u := t.UTC()
	return u.Year() == m.Year && u.Month() == m.Month
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	d := time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: d.Year(), Month: d.Month()}
}

// Before reports whether m precedes other chronologically.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// MonthRange returns every month from from to to inclusive, in order.
// Returns nil if to precedes from.
func MonthRange(from, to Month) []Month {
	if to.Before(from) {
		return nil
	}
	var months []Month
	for m := from; !to.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}
