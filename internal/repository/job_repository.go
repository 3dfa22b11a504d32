package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

// JobRepository reads customer jobs. Jobs are owned by another service; the scheduler never writes them.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs a JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindByID loads a job scoped to its company.
func (r *JobRepository) FindByID(ctx context.Context, companyID, id string) (*models.Job, error) {
	const query = `SELECT id, company_id, title, location, estimated_minutes, priority, status, created_at, updated_at FROM jobs WHERE company_id = $1 AND id = $2`
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, companyID, id); err != nil {
		return nil, err
	}
	return &job, nil
}
