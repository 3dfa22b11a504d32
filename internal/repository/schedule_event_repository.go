package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

const scheduleEventColumns = `id, company_id, job_id, technician_id, recurring_schedule_id, title, description, start_time, end_time, status, event_type, priority, location, travel_time_minutes, flexibility_minutes, metadata, created_at, updated_at`

// ScheduleEventRepository persists calendar events.
type ScheduleEventRepository struct {
	db *sqlx.DB
}

// NewScheduleEventRepository constructs the repository.
func NewScheduleEventRepository(db *sqlx.DB) *ScheduleEventRepository {
	return &ScheduleEventRepository{db: db}
}

func (r *ScheduleEventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListInRange returns events intersecting [filter.Start, filter.End) ordered by technician and start.
func (r *ScheduleEventRepository) ListInRange(ctx context.Context, filter models.EventFilter) ([]models.ScheduleEvent, error) {
	conditions := []string{"company_id = $1", "start_time < $2", "end_time > $3"}
	args := []interface{}{filter.CompanyID, filter.End, filter.Start}

	if len(filter.TechnicianIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("technician_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.TechnicianIDs))
	}
	if !filter.IncludeCancelled {
		conditions = append(conditions, fmt.Sprintf("status <> $%d", len(args)+1))
		args = append(args, models.EventStatusCancelled)
	}

	query := fmt.Sprintf("SELECT %s FROM schedule_events WHERE %s ORDER BY technician_id ASC, start_time ASC, id ASC",
		scheduleEventColumns, strings.Join(conditions, " AND "))
	var events []models.ScheduleEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list schedule events: %w", err)
	}
	return events, nil
}

// FindByID loads an event scoped to its company.
func (r *ScheduleEventRepository) FindByID(ctx context.Context, companyID, id string) (*models.ScheduleEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_events WHERE company_id = $1 AND id = $2", scheduleEventColumns)
	var event models.ScheduleEvent
	if err := r.db.GetContext(ctx, &event, query, companyID, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// FindOverlapping returns the technician's active events intersecting [start, end), skipping ignoreID.
func (r *ScheduleEventRepository) FindOverlapping(ctx context.Context, exec sqlx.ExtContext, companyID, technicianID string, start, end time.Time, ignoreID string) ([]models.ScheduleEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_events
WHERE company_id = $1 AND technician_id = $2 AND start_time < $3 AND end_time > $4 AND status <> $5 AND id <> $6
ORDER BY start_time ASC`, scheduleEventColumns)
	var events []models.ScheduleEvent
	if err := sqlx.SelectContext(ctx, r.exec(exec), &events, query, companyID, technicianID, end, start, models.EventStatusCancelled, ignoreID); err != nil {
		return nil, fmt.Errorf("find overlapping events: %w", err)
	}
	return events, nil
}

// LockTechnician serialises bookings for a technician until the surrounding transaction ends.
func (r *ScheduleEventRepository) LockTechnician(ctx context.Context, exec sqlx.ExtContext, technicianID string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := r.exec(exec).ExecContext(ctx, query, technicianID); err != nil {
		return fmt.Errorf("lock technician %s: %w", technicianID, err)
	}
	return nil
}

// Create inserts a new event.
func (r *ScheduleEventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) error {
	prepareEvent(event)
	const query = `INSERT INTO schedule_events (id, company_id, job_id, technician_id, recurring_schedule_id, title, description, start_time, end_time, status, event_type, priority, location, travel_time_minutes, flexibility_minutes, metadata, created_at, updated_at)
VALUES (:id, :company_id, :job_id, :technician_id, :recurring_schedule_id, :title, :description, :start_time, :end_time, :status, :event_type, :priority, :location, :travel_time_minutes, :flexibility_minutes, :metadata, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("create schedule event: %w", err)
	}
	return nil
}

// CreateGenerated inserts an event materialised from a recurring schedule. It reports false when an
// event already exists for the same schedule and start instant.
func (r *ScheduleEventRepository) CreateGenerated(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) (bool, error) {
	prepareEvent(event)
	const query = `INSERT INTO schedule_events (id, company_id, job_id, technician_id, recurring_schedule_id, title, description, start_time, end_time, status, event_type, priority, location, travel_time_minutes, flexibility_minutes, metadata, created_at, updated_at)
VALUES (:id, :company_id, :job_id, :technician_id, :recurring_schedule_id, :title, :description, :start_time, :end_time, :status, :event_type, :priority, :location, :travel_time_minutes, :flexibility_minutes, :metadata, :created_at, :updated_at)
ON CONFLICT (recurring_schedule_id, start_time) WHERE recurring_schedule_id IS NOT NULL DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event)
	if err != nil {
		return false, fmt.Errorf("create generated event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("generated event rows affected: %w", err)
	}
	return affected > 0, nil
}

// ExistsAt reports whether the schedule already produced an event starting at start.
func (r *ScheduleEventRepository) ExistsAt(ctx context.Context, scheduleID string, start time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM schedule_events WHERE recurring_schedule_id = $1 AND start_time = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, scheduleID, start); err != nil {
		return false, fmt.Errorf("check generated event: %w", err)
	}
	return exists, nil
}

// Update rewrites the mutable fields of an event.
func (r *ScheduleEventRepository) Update(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) error {
	event.UpdatedAt = time.Now().UTC()
	if len(event.Metadata) == 0 {
		event.Metadata = types.JSONText(`{}`)
	}
	const query = `UPDATE schedule_events SET technician_id = :technician_id, title = :title, description = :description,
start_time = :start_time, end_time = :end_time, status = :status, event_type = :event_type, priority = :priority,
location = :location, travel_time_minutes = :travel_time_minutes, flexibility_minutes = :flexibility_minutes,
metadata = :metadata, updated_at = :updated_at
WHERE id = :id AND company_id = :company_id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event)
	if err != nil {
		return fmt.Errorf("update schedule event: %w", err)
	}
	return expectAffected(result, "update schedule event")
}

// UpdateStatus changes an event's lifecycle status.
func (r *ScheduleEventRepository) UpdateStatus(ctx context.Context, companyID, id string, status models.EventStatus) error {
	const query = `UPDATE schedule_events SET status = $1, updated_at = $2 WHERE company_id = $3 AND id = $4`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), companyID, id)
	if err != nil {
		return fmt.Errorf("update schedule event status: %w", err)
	}
	return expectAffected(result, "update schedule event status")
}

// Delete removes an event.
func (r *ScheduleEventRepository) Delete(ctx context.Context, companyID, id string) error {
	const query = `DELETE FROM schedule_events WHERE company_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, companyID, id)
	if err != nil {
		return fmt.Errorf("delete schedule event: %w", err)
	}
	return expectAffected(result, "delete schedule event")
}

// DetachFromSchedule clears the schedule back-reference on every event it generated.
func (r *ScheduleEventRepository) DetachFromSchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error) {
	const query = `UPDATE schedule_events SET recurring_schedule_id = NULL, updated_at = $1 WHERE recurring_schedule_id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), scheduleID)
	if err != nil {
		return 0, fmt.Errorf("detach schedule events: %w", err)
	}
	return result.RowsAffected()
}

// DeleteFutureBySchedule removes generated events starting at or after from.
func (r *ScheduleEventRepository) DeleteFutureBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string, from time.Time) (int64, error) {
	const query = `DELETE FROM schedule_events WHERE recurring_schedule_id = $1 AND start_time >= $2`
	result, err := r.exec(exec).ExecContext(ctx, query, scheduleID, from)
	if err != nil {
		return 0, fmt.Errorf("delete future schedule events: %w", err)
	}
	return result.RowsAffected()
}

func prepareEvent(event *models.ScheduleEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = models.EventStatusScheduled
	}
	if event.EventType == "" {
		event.EventType = models.EventTypeJob
	}
	if event.Priority == "" {
		event.Priority = models.PriorityNormal
	}
	if len(event.Metadata) == 0 {
		event.Metadata = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
