package models

import "time"

// Slot is a candidate open appointment window.
type Slot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	DayOfWeek       int       `json:"day_of_week"`
	Timezone        string    `json:"timezone"`
}
