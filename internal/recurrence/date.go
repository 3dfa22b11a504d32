package recurrence

import (
	"fmt"
	"time"
)

// Date is a civil calendar day, independent of any timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// DateIn returns the calendar date of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	return DateOf(t.In(loc))
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp, whose date is taken in loc.
func ParseDate(raw string, loc *time.Location) (Date, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Date{}, fmt.Errorf("recurrence: invalid date %q", raw)
	}
	return DateIn(t, loc), nil
}

// midnight anchors the date at UTC midnight so day arithmetic never crosses a DST change.
func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// At returns the instant at the given wall clock on this date in loc.
func (d Date) At(hour, min, sec int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, min, sec, 0, loc)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight().AddDate(0, 0, n))
}

// AddMonths returns the date n months later, normalised like time.AddDate.
func (d Date) AddMonths(n int) Date {
	return DateOf(d.midnight().AddDate(0, n, 0))
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.midnight().Before(o.midnight())
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.midnight().After(o.midnight())
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// daysBetween returns the whole days from a to b, negative when b precedes a.
func daysBetween(a, b Date) int {
	return int(b.midnight().Sub(a.midnight()).Hours() / 24)
}

// monthsBetween counts calendar month boundaries from a to b.
func monthsBetween(a, b Date) int {
	return (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
}
