package models

import "time"

// WorkloadSnapshot is one technician's booked load against capacity for a window.
type WorkloadSnapshot struct {
	TechnicianID   string  `json:"technician_id"`
	BookedHours    float64 `json:"booked_hours"`
	JobCount       int     `json:"job_count"`
	MaxHours       float64 `json:"max_hours"`
	Utilization    float64 `json:"utilization"`
	AvailableHours float64 `json:"available_hours"`
}

// RecommendationType classifies workload advice.
type RecommendationType string

const (
	RecommendationRedistribute  RecommendationType = "redistribute"
	RecommendationAssignNewWork RecommendationType = "assign_new_work"
)

// WorkloadRecommendation is advisory output; nothing is moved automatically.
type WorkloadRecommendation struct {
	Type             RecommendationType `json:"type"`
	FromTechnicianID string             `json:"from_technician_id,omitempty"`
	ToTechnicianID   string             `json:"to_technician_id"`
	Hours            float64            `json:"hours,omitempty"`
	Reason           string             `json:"reason"`
}

// WorkloadReport aggregates the balancer's output.
type WorkloadReport struct {
	CompanyID          string                   `json:"company_id"`
	Start              time.Time                `json:"start"`
	End                time.Time                `json:"end"`
	Snapshots          []WorkloadSnapshot       `json:"snapshots"`
	AverageUtilization float64                  `json:"average_utilization"`
	Recommendations    []WorkloadRecommendation `json:"recommendations"`
}
