package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

func TestTechnicianRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTechnicianRepository(db)

	now := time.Now()
	active := true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+technicianColumns+" FROM technicians WHERE company_id = $1 AND role = $2 AND active = $3 AND id = ANY($4) ORDER BY id ASC")).
		WithArgs("c1", models.TechnicianRoleTechnician, true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "full_name", "email", "role", "active", "home_location", "created_at", "updated_at"}).
			AddRow("t1", "c1", "Ana", "ana@example.com", "technician", true, "Depot", now, now))

	list, err := repo.List(context.Background(), models.TechnicianFilter{CompanyID: "c1", Role: models.TechnicianRoleTechnician, Active: &active, IDs: []string{"t1", "t2"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTechnicianRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTechnicianRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM technicians WHERE company_id = $1 AND id = $2")).
		WithArgs("c1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "c1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE company_id = $1 AND id = $2")).
		WithArgs("c1", "j1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "title", "location", "estimated_minutes", "priority", "status", "created_at", "updated_at"}).
			AddRow("j1", "c1", "Boiler service", "12 High St", 90, "high", "open", now, now))

	job, err := repo.FindByID(context.Background(), "c1", "j1")
	require.NoError(t, err)
	assert.Equal(t, 90, job.EstimatedMinutes)
	assert.Equal(t, models.PriorityHigh, job.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}
