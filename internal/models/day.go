package models

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date with no zone attached. The zone is supplied when the
// day is turned into a millisecond window.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDay parses YYYY-MM-DD.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return DayOf(t), nil
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// Window returns the inclusive [start, end] millisecond bounds of the day in loc.
func (d Day) Window(loc *time.Location) (int64, int64) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
	next := time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, loc)
	return start.UnixMilli(), next.UnixMilli() - 1
}

// AddDays returns the date n days later (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
