package models

// UserRole represents the roles accepted by the RBAC middleware.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleDispatcher UserRole = "DISPATCHER"
	RoleTechnician UserRole = "TECHNICIAN"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
