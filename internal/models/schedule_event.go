package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EventStatus tracks the lifecycle of a calendar event.
type EventStatus string

const (
	EventStatusScheduled  EventStatus = "scheduled"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

// EventType classifies what occupies the technician's time.
type EventType string

const (
	EventTypeJob         EventType = "job"
	EventTypeBreak       EventType = "break"
	EventTypeTraining    EventType = "training"
	EventTypeMaintenance EventType = "maintenance"
	EventTypeMeeting     EventType = "meeting"
)

// EventPriority ranks events for dispatchers.
type EventPriority string

const (
	PriorityLow    EventPriority = "low"
	PriorityNormal EventPriority = "normal"
	PriorityHigh   EventPriority = "high"
	PriorityUrgent EventPriority = "urgent"
)

// ScheduleEvent is a concrete block of time on a technician's calendar.
type ScheduleEvent struct {
	ID                  string         `db:"id" json:"id"`
	CompanyID           string         `db:"company_id" json:"company_id"`
	JobID               *string        `db:"job_id" json:"job_id,omitempty"`
	TechnicianID        *string        `db:"technician_id" json:"technician_id,omitempty"`
	RecurringScheduleID *string        `db:"recurring_schedule_id" json:"recurring_schedule_id,omitempty"`
	Title               string         `db:"title" json:"title"`
	Description         string         `db:"description" json:"description,omitempty"`
	StartTime           time.Time      `db:"start_time" json:"start_time"`
	EndTime             time.Time      `db:"end_time" json:"end_time"`
	Status              EventStatus    `db:"status" json:"status"`
	EventType           EventType      `db:"event_type" json:"event_type"`
	Priority            EventPriority  `db:"priority" json:"priority"`
	Location            string         `db:"location" json:"location,omitempty"`
	TravelTimeMinutes   int            `db:"travel_time_minutes" json:"travel_time_minutes"`
	FlexibilityMinutes  int            `db:"flexibility_minutes" json:"flexibility_minutes"`
	Metadata            types.JSONText `db:"metadata" json:"metadata,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// Duration returns the event length.
func (e ScheduleEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Overlaps reports whether the event's [start, end) intersects [start, end).
func (e ScheduleEvent) Overlaps(start, end time.Time) bool {
	return e.StartTime.Before(end) && e.EndTime.After(start)
}

// Technician returns the assigned technician id or an empty string.
func (e ScheduleEvent) Technician() string {
	if e.TechnicianID == nil {
		return ""
	}
	return *e.TechnicianID
}

// EventSummary is the trimmed view of an event embedded in conflict reports.
type EventSummary struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Status    EventStatus `json:"status"`
	EventType EventType   `json:"event_type"`
}

// Summary builds the trimmed view of the event.
func (e ScheduleEvent) Summary() EventSummary {
	return EventSummary{
		ID:        e.ID,
		Title:     e.Title,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Status:    e.Status,
		EventType: e.EventType,
	}
}

// EventFilter restricts event range queries.
type EventFilter struct {
	CompanyID        string
	TechnicianIDs    []string
	Start            time.Time
	End              time.Time
	IncludeCancelled bool
}
