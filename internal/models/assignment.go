package models

// AssignmentCandidate is a scored technician considered for a job.
type AssignmentCandidate struct {
	TechnicianID   string  `json:"technician_id"`
	Available      bool    `json:"available"`
	Utilization    float64 `json:"utilization"`
	AvailableHours float64 `json:"available_hours"`
	Score          float64 `json:"score"`
}

// AssignmentResult carries the chosen technician, if any, and the ranking behind it.
type AssignmentResult struct {
	JobID        string                `json:"job_id"`
	TechnicianID *string               `json:"technician_id"`
	Candidates   []AssignmentCandidate `json:"candidates"`
}
