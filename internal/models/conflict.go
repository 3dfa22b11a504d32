package models

import "time"

// ConflictType distinguishes double bookings from overloaded days.
type ConflictType string

const (
	ConflictTypeOverlap  ConflictType = "overlap"
	ConflictTypeWorkload ConflictType = "workload"
)

// Conflict is one scheduling problem found for a technician.
type Conflict struct {
	TechnicianID string         `json:"technician_id"`
	Type         ConflictType   `json:"type"`
	Events       []EventSummary `json:"events,omitempty"`
	Date         string         `json:"date,omitempty"`
	Count        int            `json:"count,omitempty"`
	Threshold    int            `json:"threshold,omitempty"`
	Message      string         `json:"message"`
}

// ConflictReport is the outcome of a conflict scan.
type ConflictReport struct {
	CompanyID     string     `json:"company_id"`
	TechnicianIDs []string   `json:"technician_ids"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	TotalEvents   int        `json:"total_events"`
	Conflicts     []Conflict `json:"conflicts"`
}

// HasConflicts reports whether the scan found anything.
func (r *ConflictReport) HasConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}
