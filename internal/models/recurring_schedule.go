package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// RecurrenceFrequency selects how a recurring schedule repeats.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "daily"
	FrequencyWeekly  RecurrenceFrequency = "weekly"
	FrequencyMonthly RecurrenceFrequency = "monthly"
	FrequencyCustom  RecurrenceFrequency = "custom"
)

// RecurringScheduleStatus gates materialization; only active schedules generate events.
type RecurringScheduleStatus string

const (
	RecurringStatusActive    RecurringScheduleStatus = "active"
	RecurringStatusPaused    RecurringScheduleStatus = "paused"
	RecurringStatusCompleted RecurringScheduleStatus = "completed"
	RecurringStatusCancelled RecurringScheduleStatus = "cancelled"
)

// RecurringSchedule describes a repeating assignment pattern.
type RecurringSchedule struct {
	ID             string                  `db:"id" json:"id"`
	CompanyID      string                  `db:"company_id" json:"company_id"`
	JobID          *string                 `db:"job_id" json:"job_id,omitempty"`
	TechnicianID   *string                 `db:"technician_id" json:"technician_id,omitempty"`
	Frequency      RecurrenceFrequency     `db:"frequency" json:"frequency"`
	Interval       int                     `db:"repeat_interval" json:"interval"`
	Weekdays       pq.Int64Array           `db:"weekdays" json:"weekdays"`
	MonthDay       *int                    `db:"month_day" json:"month_day,omitempty"`
	StartDate      time.Time               `db:"start_date" json:"start_date"`
	EndDate        *time.Time              `db:"end_date" json:"end_date,omitempty"`
	Timezone       string                  `db:"timezone" json:"timezone"`
	Status         RecurringScheduleStatus `db:"status" json:"status"`
	NextOccurrence *time.Time              `db:"next_occurrence" json:"next_occurrence,omitempty"`
	Constraints    types.JSONText          `db:"constraints" json:"constraints"`
	CreatedAt      time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time               `db:"updated_at" json:"updated_at"`
}

// RecurrenceConstraints is the typed form of the constraints column.
type RecurrenceConstraints struct {
	DurationMinutes int           `json:"duration_minutes,omitempty" validate:"gte=0,lte=1440"`
	Title           string        `json:"title,omitempty" validate:"max=255"`
	Description     string        `json:"description,omitempty"`
	Priority        EventPriority `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	EventType       EventType     `json:"event_type,omitempty" validate:"omitempty,oneof=job break training maintenance meeting"`
	Location        string        `json:"location,omitempty"`
	Color           string        `json:"color,omitempty" validate:"omitempty,max=32"`
	CustomDates     []string      `json:"custom_dates,omitempty"`
}

// DecodeConstraints parses the constraints column. An empty column yields zero constraints.
func (s RecurringSchedule) DecodeConstraints() (RecurrenceConstraints, error) {
	var c RecurrenceConstraints
	if len(s.Constraints) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(s.Constraints, &c); err != nil {
		return c, fmt.Errorf("decode recurrence constraints: %w", err)
	}
	return c, nil
}

// EncodeConstraints stores c on the schedule.
func (s *RecurringSchedule) EncodeConstraints(c RecurrenceConstraints) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode recurrence constraints: %w", err)
	}
	s.Constraints = types.JSONText(raw)
	return nil
}

// Technician returns the assigned technician id or an empty string.
func (s RecurringSchedule) Technician() string {
	if s.TechnicianID == nil {
		return ""
	}
	return *s.TechnicianID
}

// RecurringScheduleFilter narrows schedule listings.
type RecurringScheduleFilter struct {
	CompanyID    string
	TechnicianID string
	Status       RecurringScheduleStatus
	Page         int
	PageSize     int
}
