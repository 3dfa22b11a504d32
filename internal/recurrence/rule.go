package recurrence

import (
	"errors"
	"sort"
	"time"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidInterval indicates an interval below one.
	ErrInvalidInterval = errors.New("recurrence: interval must be at least 1")
	// ErrMissingWeekdays indicates a weekly rule without weekdays.
	ErrMissingWeekdays = errors.New("recurrence: weekly rule requires at least one weekday")
	// ErrInvalidWeekday indicates a weekday outside 0-6.
	ErrInvalidWeekday = errors.New("recurrence: weekdays must be between 0 and 6")
	// ErrMissingMonthDay indicates a monthly rule without a valid day of month.
	ErrMissingMonthDay = errors.New("recurrence: monthly rule requires month_day between 1 and 31")
	// ErrMissingCustomDates indicates a custom rule without dates.
	ErrMissingCustomDates = errors.New("recurrence: custom rule requires at least one date")
)

// Rule decides whether a date, relative to the schedule's anchor date, carries an occurrence.
type Rule interface {
	Frequency() models.RecurrenceFrequency
	Matches(anchor, date Date) bool
}

// DailyRule repeats every Interval days.
type DailyRule struct {
	Interval int
}

// NewDailyRule validates and builds a daily rule.
func NewDailyRule(interval int) (DailyRule, error) {
	if interval < 1 {
		return DailyRule{}, ErrInvalidInterval
	}
	return DailyRule{Interval: interval}, nil
}

func (r DailyRule) Frequency() models.RecurrenceFrequency { return models.FrequencyDaily }

// Matches implements Rule.
func (r DailyRule) Matches(anchor, date Date) bool {
	days := daysBetween(anchor, date)
	return days >= 0 && days%interval(r.Interval) == 0
}

// WeeklyRule repeats on the selected weekdays of every Interval-th week counted from the anchor.
type WeeklyRule struct {
	Interval int
	Weekdays []time.Weekday
}

// NewWeeklyRule validates and builds a weekly rule. At least one weekday is required.
func NewWeeklyRule(interval int, weekdays []int) (WeeklyRule, error) {
	if interval < 1 {
		return WeeklyRule{}, ErrInvalidInterval
	}
	if len(weekdays) == 0 {
		return WeeklyRule{}, ErrMissingWeekdays
	}
	seen := make(map[int]struct{}, len(weekdays))
	days := make([]time.Weekday, 0, len(weekdays))
	for _, day := range weekdays {
		if day < 0 || day > 6 {
			return WeeklyRule{}, ErrInvalidWeekday
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, time.Weekday(day))
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return WeeklyRule{Interval: interval, Weekdays: days}, nil
}

func (r WeeklyRule) Frequency() models.RecurrenceFrequency { return models.FrequencyWeekly }

// Matches implements Rule. An empty weekday set matches every weekday.
func (r WeeklyRule) Matches(anchor, date Date) bool {
	days := daysBetween(anchor, date)
	if days < 0 {
		return false
	}
	if (days/7)%interval(r.Interval) != 0 {
		return false
	}
	if len(r.Weekdays) == 0 {
		return true
	}
	weekday := date.Weekday()
	for _, day := range r.Weekdays {
		if day == weekday {
			return true
		}
	}
	return false
}

// MonthlyRule repeats on MonthDay of every Interval-th month. Months without that day are skipped.
type MonthlyRule struct {
	Interval int
	MonthDay int
}

// NewMonthlyRule validates and builds a monthly rule.
func NewMonthlyRule(interval int, monthDay *int) (MonthlyRule, error) {
	if interval < 1 {
		return MonthlyRule{}, ErrInvalidInterval
	}
	if monthDay == nil || *monthDay < 1 || *monthDay > 31 {
		return MonthlyRule{}, ErrMissingMonthDay
	}
	return MonthlyRule{Interval: interval, MonthDay: *monthDay}, nil
}

func (r MonthlyRule) Frequency() models.RecurrenceFrequency { return models.FrequencyMonthly }

// Matches implements Rule.
func (r MonthlyRule) Matches(anchor, date Date) bool {
	if date.Day != r.MonthDay {
		return false
	}
	months := monthsBetween(anchor, date)
	return months >= 0 && months%interval(r.Interval) == 0
}

// CustomRule occurs only on an explicit set of dates.
type CustomRule struct {
	Dates []Date
}

// NewCustomRule parses and validates the explicit dates, interpreting timestamps in loc.
func NewCustomRule(raw []string, loc *time.Location) (CustomRule, error) {
	if len(raw) == 0 {
		return CustomRule{}, ErrMissingCustomDates
	}
	seen := make(map[Date]struct{}, len(raw))
	dates := make([]Date, 0, len(raw))
	for _, value := range raw {
		d, err := ParseDate(value, loc)
		if err != nil {
			return CustomRule{}, err
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return CustomRule{Dates: dates}, nil
}

func (r CustomRule) Frequency() models.RecurrenceFrequency { return models.FrequencyCustom }

// Matches implements Rule. The anchor is ignored.
func (r CustomRule) Matches(_ Date, date Date) bool {
	for _, d := range r.Dates {
		if d == date {
			return true
		}
	}
	return false
}

// Compile builds the typed rule for a stored schedule, validating the fields its frequency needs.
func Compile(schedule models.RecurringSchedule, constraints models.RecurrenceConstraints, loc *time.Location) (Rule, error) {
	switch schedule.Frequency {
	case models.FrequencyDaily:
		return NewDailyRule(schedule.Interval)
	case models.FrequencyWeekly:
		weekdays := make([]int, len(schedule.Weekdays))
		for i, day := range schedule.Weekdays {
			weekdays[i] = int(day)
		}
		return NewWeeklyRule(schedule.Interval, weekdays)
	case models.FrequencyMonthly:
		return NewMonthlyRule(schedule.Interval, schedule.MonthDay)
	case models.FrequencyCustom:
		return NewCustomRule(constraints.CustomDates, loc)
	default:
		return nil, ErrInvalidFrequency
	}
}

func interval(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
