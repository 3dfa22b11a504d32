package models

import "time"

// TechnicianRole separates field technicians from office staff sharing the directory.
type TechnicianRole string

const (
	TechnicianRoleTechnician TechnicianRole = "technician"
	TechnicianRoleDispatcher TechnicianRole = "dispatcher"
	TechnicianRoleAdmin      TechnicianRole = "admin"
)

// Technician is a member of a company's field workforce.
type Technician struct {
	ID           string         `db:"id" json:"id"`
	CompanyID    string         `db:"company_id" json:"company_id"`
	FullName     string         `db:"full_name" json:"full_name"`
	Email        string         `db:"email" json:"email"`
	Role         TechnicianRole `db:"role" json:"role"`
	Active       bool           `db:"active" json:"active"`
	HomeLocation string         `db:"home_location" json:"home_location,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// TechnicianFilter narrows directory lookups.
type TechnicianFilter struct {
	CompanyID string
	Role      TechnicianRole
	Active    *bool
	IDs       []string
}
