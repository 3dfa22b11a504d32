package models

import (
	"fmt"
	"time"
)

// AvailabilityRule describes a weekly working window, either for one technician or company-wide.
type AvailabilityRule struct {
	ID             string     `db:"id" json:"id"`
	CompanyID      string     `db:"company_id" json:"company_id"`
	TechnicianID   *string    `db:"technician_id" json:"technician_id,omitempty"`
	DayOfWeek      int        `db:"day_of_week" json:"day_of_week"`
	IsAvailable    bool       `db:"is_available" json:"is_available"`
	StartTime      string     `db:"start_time" json:"start_time"`
	EndTime        string     `db:"end_time" json:"end_time"`
	Timezone       string     `db:"timezone" json:"timezone"`
	EffectiveFrom  *time.Time `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveTo    *time.Time `db:"effective_to" json:"effective_to,omitempty"`
	MaxHoursPerDay float64    `db:"max_hours_per_day" json:"max_hours_per_day"`
	MaxJobsPerDay  int        `db:"max_jobs_per_day" json:"max_jobs_per_day"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the rule's effective range includes the calendar date of t.
func (r AvailabilityRule) Covers(t time.Time) bool {
	day := t.Format(DateLayout)
	if r.EffectiveFrom != nil && day < r.EffectiveFrom.Format(DateLayout) {
		return false
	}
	if r.EffectiveTo != nil && day > r.EffectiveTo.Format(DateLayout) {
		return false
	}
	return true
}

// AvailabilitySource tells where a resolved rule came from.
type AvailabilitySource string

const (
	AvailabilitySourceTechnician AvailabilitySource = "technician"
	AvailabilitySourceCompany    AvailabilitySource = "company"
	AvailabilitySourceDefault    AvailabilitySource = "default"
)

// DayAvailability is the effective rule for a single calendar date.
type DayAvailability struct {
	Date           string             `json:"date"`
	DayOfWeek      int                `json:"day_of_week"`
	IsAvailable    bool               `json:"is_available"`
	StartTime      string             `json:"start_time"`
	EndTime        string             `json:"end_time"`
	MaxHoursPerDay float64            `json:"max_hours_per_day"`
	MaxJobsPerDay  int                `json:"max_jobs_per_day"`
	Timezone       string             `json:"timezone,omitempty"`
	Source         AvailabilitySource `json:"source"`
	RuleID         string             `json:"rule_id,omitempty"`
}

// Window returns the concrete availability window on date. The wall clock times are read in the
// rule's own timezone when it has one, otherwise in loc.
func (d DayAvailability) Window(date time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if d.Timezone != "" {
		zone, err := time.LoadLocation(d.Timezone)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid timezone %q: %w", d.Timezone, err)
		}
		loc = zone
	}
	start, err := ClockOn(date, d.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ClockOn(date, d.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Capacity returns the bookable hours for the day: the configured cap bounded by the window length.
func (d DayAvailability) Capacity(date time.Time, loc *time.Location) float64 {
	if !d.IsAvailable {
		return 0
	}
	start, end, err := d.Window(date, loc)
	if err != nil || !end.After(start) {
		return 0
	}
	hours := end.Sub(start).Hours()
	if d.MaxHoursPerDay > 0 && d.MaxHoursPerDay < hours {
		return d.MaxHoursPerDay
	}
	return hours
}

// ResolvedAvailability is the resolver output for a technician over a window.
type ResolvedAvailability struct {
	CompanyID    string                  `json:"company_id"`
	TechnicianID string                  `json:"technician_id"`
	Timezone     string                  `json:"timezone"`
	Start        time.Time               `json:"start"`
	End          time.Time               `json:"end"`
	Weekly       map[int]DayAvailability `json:"weekly"`
	Days         []DayAvailability       `json:"days"`
}

// For returns the availability for the calendar date of t, falling back to the weekly map.
func (r *ResolvedAvailability) For(t time.Time) DayAvailability {
	key := t.Format(DateLayout)
	for _, day := range r.Days {
		if day.Date == key {
			return day
		}
	}
	if day, ok := r.Weekly[int(t.Weekday())]; ok {
		day.Date = key
		return day
	}
	return DefaultAvailability(t)
}

// DateLayout is the canonical calendar date format.
const DateLayout = "2006-01-02"

// ClockLayout is the canonical wall clock format used by availability rules.
const ClockLayout = "15:04"

// ClockOn combines a calendar date with an "HH:MM" wall clock in loc.
func ClockOn(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse(ClockLayout, clock)
	if err != nil {
		if parsed, err = time.Parse("15:04:05", clock); err != nil {
			return time.Time{}, fmt.Errorf("invalid clock %q: %w", clock, err)
		}
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc), nil
}

// DefaultAvailability is the fallback used when no rule applies: Monday to Friday 08:00-17:00.
func DefaultAvailability(date time.Time) DayAvailability {
	weekday := date.Weekday()
	day := DayAvailability{
		Date:           date.Format(DateLayout),
		DayOfWeek:      int(weekday),
		IsAvailable:    weekday != time.Saturday && weekday != time.Sunday,
		StartTime:      "08:00",
		EndTime:        "17:00",
		MaxHoursPerDay: 8,
		MaxJobsPerDay:  8,
		Source:         AvailabilitySourceDefault,
	}
	return day
}
