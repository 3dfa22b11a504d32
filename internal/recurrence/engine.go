package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

const (
	defaultDuration      = 60 * time.Minute
	defaultHorizonMonths = 12
)

var (
	// ErrInvalidTimezone indicates the schedule timezone cannot be loaded.
	ErrInvalidTimezone = errors.New("recurrence: invalid timezone")
	// ErrInvalidWindow indicates a generation window whose end precedes its start.
	ErrInvalidWindow = errors.New("recurrence: window end precedes start")
	// ErrInvalidEndDate indicates an end date before the start date.
	ErrInvalidEndDate = errors.New("recurrence: end date precedes start date")
)

// Occurrence is one concrete instance produced by a pattern.
type Occurrence struct {
	Date  Date
	Start time.Time
	End   time.Time
}

// Pattern is a compiled recurring schedule ready for evaluation.
type Pattern struct {
	Rule     Rule
	Location *time.Location
	Anchor   Date
	Until    *Date
	Duration time.Duration
	Active   bool

	hour, minute, second int
	canonical            *time.Location
}

// Engine compiles recurring schedules and normalises occurrences to a canonical timezone.
type Engine struct {
	canonical       *time.Location
	defaultDuration time.Duration
	horizonMonths   int
}

// Option tunes an Engine.
type Option func(*Engine)

// WithDefaultDuration sets the occurrence length used when a schedule does not define one.
func WithDefaultDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultDuration = d
		}
	}
}

// WithHorizonMonths bounds how far NextOccurrence scans ahead.
func WithHorizonMonths(months int) Option {
	return func(e *Engine) {
		if months > 0 {
			e.horizonMonths = months
		}
	}
}

// NewEngine constructs an Engine emitting instants in canonical. A nil location means UTC.
func NewEngine(canonical *time.Location, opts ...Option) *Engine {
	if canonical == nil {
		canonical = time.UTC
	}
	e := &Engine{canonical: canonical, defaultDuration: defaultDuration, horizonMonths: defaultHorizonMonths}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile validates a schedule and turns it into a Pattern.
func (e *Engine) Compile(schedule models.RecurringSchedule) (*Pattern, error) {
	loc, err := LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, err
	}
	constraints, err := schedule.DecodeConstraints()
	if err != nil {
		return nil, err
	}
	rule, err := Compile(schedule, constraints, loc)
	if err != nil {
		return nil, err
	}

	start := schedule.StartDate.In(loc)
	p := &Pattern{
		Rule:      rule,
		Location:  loc,
		Anchor:    DateOf(start),
		Duration:  e.defaultDuration,
		Active:    schedule.Status == models.RecurringStatusActive,
		hour:      start.Hour(),
		minute:    start.Minute(),
		second:    start.Second(),
		canonical: e.canonical,
	}
	if constraints.DurationMinutes > 0 {
		p.Duration = time.Duration(constraints.DurationMinutes) * time.Minute
	}
	if schedule.EndDate != nil {
		until := DateIn(*schedule.EndDate, loc)
		if until.Before(p.Anchor) {
			return nil, ErrInvalidEndDate
		}
		p.Until = &until
	}
	return p, nil
}

// Occurrences materialises every occurrence whose date falls in [from, to] (dates taken in the
// schedule's timezone, both inclusive). Inactive schedules yield nothing.
func (e *Engine) Occurrences(schedule models.RecurringSchedule, from, to time.Time) ([]Occurrence, error) {
	p, err := e.Compile(schedule)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, ErrInvalidWindow
	}
	if !p.Active {
		return nil, nil
	}
	return p.Between(DateIn(from, p.Location), DateIn(to, p.Location)), nil
}

// NextOccurrence returns the first occurrence starting at or after from, scanning at most the
// configured horizon. It returns nil for inactive or ended schedules.
func (e *Engine) NextOccurrence(schedule models.RecurringSchedule, from time.Time) (*time.Time, error) {
	p, err := e.Compile(schedule)
	if err != nil {
		return nil, err
	}
	return p.Next(from, e.horizonMonths), nil
}

// Occurs reports whether the pattern has an occurrence on d.
func (p *Pattern) Occurs(d Date) bool {
	if d.Before(p.Anchor) {
		return false
	}
	if p.Until != nil && d.After(*p.Until) {
		return false
	}
	return p.Rule.Matches(p.Anchor, d)
}

// On builds the occurrence for d without checking the rule.
func (p *Pattern) On(d Date) Occurrence {
	start := d.At(p.hour, p.minute, p.second, p.Location).In(p.canonical)
	return Occurrence{Date: d, Start: start, End: start.Add(p.Duration)}
}

// Between returns occurrences for each matching date in [from, to].
func (p *Pattern) Between(from, to Date) []Occurrence {
	if from.Before(p.Anchor) {
		from = p.Anchor
	}
	if p.Until != nil && to.After(*p.Until) {
		to = *p.Until
	}
	var out []Occurrence
	for d := from; !d.After(to); d = d.AddDays(1) {
		if p.Occurs(d) {
			out = append(out, p.On(d))
		}
	}
	return out
}

// Next returns the first occurrence start at or after from within horizonMonths, or nil.
func (p *Pattern) Next(from time.Time, horizonMonths int) *time.Time {
	if !p.Active {
		return nil
	}
	if horizonMonths <= 0 {
		horizonMonths = defaultHorizonMonths
	}
	day := DateIn(from, p.Location)
	limit := day.AddMonths(horizonMonths)
	if day.Before(p.Anchor) {
		day = p.Anchor
	}
	if p.Until != nil && limit.After(*p.Until) {
		limit = *p.Until
	}
	for ; !day.After(limit); day = day.AddDays(1) {
		if !p.Occurs(day) {
			continue
		}
		occ := p.On(day)
		if occ.Start.Before(from) {
			continue
		}
		start := occ.Start
		return &start
	}
	return nil
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	return loc, nil
}
