package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

const technicianColumns = `id, company_id, full_name, email, role, active, home_location, created_at, updated_at`

// TechnicianRepository reads the technician directory.
type TechnicianRepository struct {
	db *sqlx.DB
}

// NewTechnicianRepository constructs a TechnicianRepository.
func NewTechnicianRepository(db *sqlx.DB) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

// List returns technicians matching the filter ordered by id.
func (r *TechnicianRepository) List(ctx context.Context, filter models.TechnicianFilter) ([]models.Technician, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{filter.CompanyID}

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.IDs))
	}

	query := fmt.Sprintf("SELECT %s FROM technicians WHERE %s ORDER BY id ASC", technicianColumns, strings.Join(conditions, " AND "))
	var technicians []models.Technician
	if err := r.db.SelectContext(ctx, &technicians, query, args...); err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	return technicians, nil
}

// FindByID loads a technician scoped to its company.
func (r *TechnicianRepository) FindByID(ctx context.Context, companyID, id string) (*models.Technician, error) {
	query := fmt.Sprintf("SELECT %s FROM technicians WHERE company_id = $1 AND id = $2", technicianColumns)
	var technician models.Technician
	if err := r.db.GetContext(ctx, &technician, query, companyID, id); err != nil {
		return nil, err
	}
	return &technician, nil
}
