package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

const recurringScheduleColumns = `id, company_id, job_id, technician_id, frequency, repeat_interval, weekdays, month_day, start_date, end_date, timezone, status, next_occurrence, constraints, created_at, updated_at`

// RecurringScheduleRepository persists recurring schedule definitions.
type RecurringScheduleRepository struct {
	db *sqlx.DB
}

// NewRecurringScheduleRepository constructs the repository.
func NewRecurringScheduleRepository(db *sqlx.DB) *RecurringScheduleRepository {
	return &RecurringScheduleRepository{db: db}
}

func (r *RecurringScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns schedules for a company along with the total count.
func (r *RecurringScheduleRepository) List(ctx context.Context, filter models.RecurringScheduleFilter) ([]models.RecurringSchedule, int, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{filter.CompanyID}
	if filter.TechnicianID != "" {
		conditions = append(conditions, fmt.Sprintf("technician_id = $%d", len(args)+1))
		args = append(args, filter.TechnicianID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM recurring_schedules WHERE %s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d",
		recurringScheduleColumns, where, size, offset)
	var schedules []models.RecurringSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recurring schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM recurring_schedules WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count recurring schedules: %w", err)
	}
	return schedules, total, nil
}

// ListActive returns every active schedule of a company.
func (r *RecurringScheduleRepository) ListActive(ctx context.Context, companyID string) ([]models.RecurringSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_schedules WHERE company_id = $1 AND status = $2 ORDER BY id ASC", recurringScheduleColumns)
	var schedules []models.RecurringSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, companyID, models.RecurringStatusActive); err != nil {
		return nil, fmt.Errorf("list active recurring schedules: %w", err)
	}
	return schedules, nil
}

// FindByID loads a schedule scoped to its company.
func (r *RecurringScheduleRepository) FindByID(ctx context.Context, companyID, id string) (*models.RecurringSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_schedules WHERE company_id = $1 AND id = $2", recurringScheduleColumns)
	var schedule models.RecurringSchedule
	if err := r.db.GetContext(ctx, &schedule, query, companyID, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Create inserts a schedule.
func (r *RecurringScheduleRepository) Create(ctx context.Context, schedule *models.RecurringSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if len(schedule.Constraints) == 0 {
		schedule.Constraints = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO recurring_schedules (id, company_id, job_id, technician_id, frequency, repeat_interval, weekdays, month_day, start_date, end_date, timezone, status, next_occurrence, constraints, created_at, updated_at)
VALUES (:id, :company_id, :job_id, :technician_id, :frequency, :repeat_interval, :weekdays, :month_day, :start_date, :end_date, :timezone, :status, :next_occurrence, :constraints, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create recurring schedule: %w", err)
	}
	return nil
}

// Update rewrites a schedule definition.
func (r *RecurringScheduleRepository) Update(ctx context.Context, schedule *models.RecurringSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	if len(schedule.Constraints) == 0 {
		schedule.Constraints = types.JSONText(`{}`)
	}
	const query = `UPDATE recurring_schedules SET job_id = :job_id, technician_id = :technician_id, frequency = :frequency,
repeat_interval = :repeat_interval, weekdays = :weekdays, month_day = :month_day, start_date = :start_date, end_date = :end_date,
timezone = :timezone, status = :status, next_occurrence = :next_occurrence, constraints = :constraints, updated_at = :updated_at
WHERE id = :id AND company_id = :company_id`
	result, err := r.db.NamedExecContext(ctx, query, schedule)
	if err != nil {
		return fmt.Errorf("update recurring schedule: %w", err)
	}
	return expectAffected(result, "update recurring schedule")
}

// UpdateNextOccurrence caches the next occurrence instant.
func (r *RecurringScheduleRepository) UpdateNextOccurrence(ctx context.Context, id string, next *time.Time) error {
	const query = `UPDATE recurring_schedules SET next_occurrence = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, next, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update next occurrence: %w", err)
	}
	return nil
}

// Delete removes a schedule.
func (r *RecurringScheduleRepository) Delete(ctx context.Context, exec sqlx.ExtContext, companyID, id string) error {
	const query = `DELETE FROM recurring_schedules WHERE company_id = $1 AND id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, companyID, id)
	if err != nil {
		return fmt.Errorf("delete recurring schedule: %w", err)
	}
	return expectAffected(result, "delete recurring schedule")
}
