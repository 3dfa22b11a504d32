package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// SchedulingConfig carries the settings shared by the scheduling services.
type SchedulingConfig struct {
	// Location is the timezone calendar days are evaluated in.
	Location            *time.Location
	WorkloadThreshold   int
	DefaultEventMinutes int
	// Now is injectable for tests.
	Now func() time.Time
}

func (c SchedulingConfig) withDefaults() SchedulingConfig {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.WorkloadThreshold <= 0 {
		c.WorkloadThreshold = 6
	}
	if c.DefaultEventMinutes <= 0 {
		c.DefaultEventMinutes = 60
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "start and end are required")
	}
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}
	return nil
}

// windowDays returns local midnight of every calendar day in loc touched by [start, end).
func windowDays(start, end time.Time, loc *time.Location) []time.Time {
	first := startOfDay(start.In(loc))
	last := end.In(loc).Add(-time.Nanosecond)
	var days []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func round2(v float64) float64 {
	if v < 0 {
		return -round2(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}
