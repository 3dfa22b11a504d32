package models

import "time"

// Job is a unit of customer work that can be placed on a technician's calendar.
type Job struct {
	ID               string        `db:"id" json:"id"`
	CompanyID        string        `db:"company_id" json:"company_id"`
	Title            string        `db:"title" json:"title"`
	Location         string        `db:"location" json:"location,omitempty"`
	EstimatedMinutes int           `db:"estimated_minutes" json:"estimated_minutes"`
	Priority         EventPriority `db:"priority" json:"priority"`
	Status           string        `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
