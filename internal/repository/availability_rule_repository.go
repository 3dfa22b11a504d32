package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

const availabilityRuleColumns = `id, company_id, technician_id, day_of_week, is_available, start_time, end_time, timezone, effective_from, effective_to, max_hours_per_day, max_jobs_per_day, created_at, updated_at`

// AvailabilityRuleRepository persists weekly availability rules.
type AvailabilityRuleRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRuleRepository constructs the repository.
func NewAvailabilityRuleRepository(db *sqlx.DB) *AvailabilityRuleRepository {
	return &AvailabilityRuleRepository{db: db}
}

// ListEffective returns the technician-specific and company-wide rules whose effective range touches
// [start, end]. Technician rules come first, then newer rules first.
func (r *AvailabilityRuleRepository) ListEffective(ctx context.Context, companyID, technicianID string, start, end time.Time) ([]models.AvailabilityRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM technician_availability_rules
WHERE company_id = $1 AND (technician_id = $2 OR technician_id IS NULL)
AND (effective_from IS NULL OR effective_from <= $3)
AND (effective_to IS NULL OR effective_to >= $4)
ORDER BY technician_id NULLS LAST, day_of_week ASC, effective_from DESC NULLS LAST, updated_at DESC`, availabilityRuleColumns)
	var rules []models.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, companyID, technicianID, end, start); err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

// FindByID loads a rule scoped to its company.
func (r *AvailabilityRuleRepository) FindByID(ctx context.Context, companyID, id string) (*models.AvailabilityRule, error) {
	query := fmt.Sprintf("SELECT %s FROM technician_availability_rules WHERE company_id = $1 AND id = $2", availabilityRuleColumns)
	var rule models.AvailabilityRule
	if err := r.db.GetContext(ctx, &rule, query, companyID, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Upsert inserts the rule or replaces the one with the same id.
func (r *AvailabilityRuleRepository) Upsert(ctx context.Context, rule *models.AvailabilityRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	const query = `INSERT INTO technician_availability_rules (id, company_id, technician_id, day_of_week, is_available, start_time, end_time, timezone, effective_from, effective_to, max_hours_per_day, max_jobs_per_day, created_at, updated_at)
VALUES (:id, :company_id, :technician_id, :day_of_week, :is_available, :start_time, :end_time, :timezone, :effective_from, :effective_to, :max_hours_per_day, :max_jobs_per_day, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET technician_id = EXCLUDED.technician_id, day_of_week = EXCLUDED.day_of_week,
is_available = EXCLUDED.is_available, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
timezone = EXCLUDED.timezone, effective_from = EXCLUDED.effective_from, effective_to = EXCLUDED.effective_to,
max_hours_per_day = EXCLUDED.max_hours_per_day, max_jobs_per_day = EXCLUDED.max_jobs_per_day, updated_at = EXCLUDED.updated_at
WHERE technician_availability_rules.company_id = EXCLUDED.company_id`
	result, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("upsert availability rule: %w", err)
	}
	return expectAffected(result, "upsert availability rule")
}

// Delete removes a rule.
func (r *AvailabilityRuleRepository) Delete(ctx context.Context, companyID, id string) error {
	const query = `DELETE FROM technician_availability_rules WHERE company_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, companyID, id)
	if err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	return expectAffected(result, "delete availability rule")
}
