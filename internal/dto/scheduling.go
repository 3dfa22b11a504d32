package dto

import (
	"time"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

// UpsertAvailabilityRuleRequest creates or replaces a weekly availability rule. A nil technician makes
// the rule company-wide.
type UpsertAvailabilityRuleRequest struct {
	ID             string     `json:"id"`
	TechnicianID   *string    `json:"technician_id"`
	DayOfWeek      int        `json:"day_of_week" validate:"min=0,max=6"`
	IsAvailable    bool       `json:"is_available"`
	StartTime      string     `json:"start_time" validate:"required"`
	EndTime        string     `json:"end_time" validate:"required"`
	Timezone       string     `json:"timezone"`
	EffectiveFrom  *time.Time `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to"`
	MaxHoursPerDay float64    `json:"max_hours_per_day" validate:"gte=0,lte=24"`
	MaxJobsPerDay  int        `json:"max_jobs_per_day" validate:"gte=0"`
}

// DetectConflictsRequest scans technicians' calendars over a window.
type DetectConflictsRequest struct {
	TechnicianIDs []string  `json:"technician_ids" validate:"required,min=1,dive,required"`
	Start         time.Time `json:"start" validate:"required"`
	End           time.Time `json:"end" validate:"required"`
}

// SlotCheckResponse answers a slot availability check.
type SlotCheckResponse struct {
	TechnicianID string    `json:"technician_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Available    bool      `json:"available"`
}

// RecurringScheduleRequest is the create/update payload for recurring schedules.
type RecurringScheduleRequest struct {
	JobID        *string                      `json:"job_id"`
	TechnicianID *string                      `json:"technician_id"`
	Frequency    string                       `json:"frequency" validate:"required,oneof=daily weekly monthly custom"`
	Interval     int                          `json:"interval" validate:"omitempty,min=1,max=365"`
	Weekdays     []int64                      `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	MonthDay     *int                         `json:"month_day" validate:"omitempty,min=1,max=31"`
	StartDate    time.Time                    `json:"start_date" validate:"required"`
	EndDate      *time.Time                   `json:"end_date"`
	Timezone     string                       `json:"timezone"`
	Status       string                       `json:"status" validate:"omitempty,oneof=active paused completed cancelled"`
	Constraints  models.RecurrenceConstraints `json:"constraints"`
}

// RecurringScheduleQuery filters recurring schedule listings.
type RecurringScheduleQuery struct {
	TechnicianID string `form:"technician_id"`
	Status       string `form:"status" validate:"omitempty,oneof=active paused completed cancelled"`
	Page         int    `form:"page" validate:"omitempty,min=1"`
	PageSize     int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// GenerateEventsRequest materialises a schedule over an inclusive date window.
type GenerateEventsRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// GenerateEventsResponse reports what a generation run produced.
type GenerateEventsResponse struct {
	ScheduleID     string                 `json:"schedule_id"`
	Created        []models.ScheduleEvent `json:"created"`
	Skipped        int                    `json:"skipped"`
	NextOccurrence *time.Time             `json:"next_occurrence,omitempty"`
}

// NextOccurrenceResponse carries the next occurrence of a schedule, if any.
type NextOccurrenceResponse struct {
	ScheduleID     string     `json:"schedule_id"`
	From           time.Time  `json:"from"`
	NextOccurrence *time.Time `json:"next_occurrence"`
}

// RegenerateRequest queues regeneration of every active schedule over a rolling horizon.
type RegenerateRequest struct {
	HorizonDays int `json:"horizon_days" validate:"omitempty,min=1,max=366"`
}

// RegenerateResponse reports how many schedules were queued.
type RegenerateResponse struct {
	Queued        int      `json:"queued"`
	AlreadyQueued int      `json:"already_queued"`
	ScheduleIDs   []string `json:"schedule_ids"`
}

// BalanceWorkloadRequest asks for a workload report.
type BalanceWorkloadRequest struct {
	TechnicianIDs []string  `json:"technician_ids" validate:"required,min=1,dive,required"`
	Start         time.Time `json:"start" validate:"required"`
	End           time.Time `json:"end" validate:"required"`
}

// AutoAssignRequest picks a technician for a job in a window.
type AutoAssignRequest struct {
	Start                  time.Time `json:"start" validate:"required"`
	End                    time.Time `json:"end" validate:"required"`
	PreferredTechnicianIDs []string  `json:"preferred_technician_ids" validate:"omitempty,dive,required"`
}

// OptimizeRouteRequest orders a technician's stops.
type OptimizeRouteRequest struct {
	Locations     []string `json:"locations" validate:"required,min=1,dive,required"`
	StartLocation string   `json:"start_location"`
	Mode          string   `json:"mode" validate:"omitempty,oneof=driving walking bicycling transit"`
}

// BookEventRequest places an event on a technician's calendar.
type BookEventRequest struct {
	JobID              *string                `json:"job_id"`
	TechnicianID       string                 `json:"technician_id" validate:"required"`
	Title              string                 `json:"title" validate:"required,max=200"`
	Description        string                 `json:"description" validate:"max=2000"`
	StartTime          time.Time              `json:"start_time" validate:"required"`
	EndTime            time.Time              `json:"end_time" validate:"required"`
	EventType          string                 `json:"event_type" validate:"omitempty,oneof=job break training maintenance meeting"`
	Priority           string                 `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Location           string                 `json:"location"`
	TravelTimeMinutes  int                    `json:"travel_time_minutes" validate:"gte=0,lte=480"`
	FlexibilityMinutes int                    `json:"flexibility_minutes" validate:"gte=0"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// RescheduleEventRequest moves an event, optionally to another technician.
type RescheduleEventRequest struct {
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	TechnicianID *string   `json:"technician_id"`
}

// UpdateEventStatusRequest changes an event's lifecycle status.
type UpdateEventStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
}
