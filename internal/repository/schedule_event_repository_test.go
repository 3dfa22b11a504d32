package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleEventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "job_id", "technician_id", "recurring_schedule_id", "title", "description", "start_time", "end_time", "status", "event_type", "priority", "location", "travel_time_minutes", "flexibility_minutes", "metadata", "created_at", "updated_at"})
}

func TestScheduleEventRepositoryListInRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	rows := scheduleEventRows().
		AddRow("e1", "c1", nil, "t1", nil, "Install", "", start.Add(10*time.Hour), start.Add(11*time.Hour), "scheduled", "job", "normal", "", 0, 0, []byte(`{}`), start, start)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+scheduleEventColumns+" FROM schedule_events WHERE company_id = $1 AND start_time < $2 AND end_time > $3 AND technician_id = ANY($4) AND status <> $5 ORDER BY technician_id ASC, start_time ASC, id ASC")).
		WithArgs("c1", end, start, sqlmock.AnyArg(), models.EventStatusCancelled).
		WillReturnRows(rows)

	events, err := repo.ListInRange(context.Background(), models.EventFilter{CompanyID: "c1", TechnicianIDs: []string{"t1"}, Start: start, End: end})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "t1", events[0].Technician())
	assert.Nil(t, events[0].JobID)
	assert.Equal(t, time.Hour, events[0].Duration())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryListInRangeIncludesCancelled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE company_id = $1 AND start_time < $2 AND end_time > $3 ORDER BY")).
		WithArgs("c1", start.Add(time.Hour), start).
		WillReturnRows(scheduleEventRows())

	events, err := repo.ListInRange(context.Background(), models.EventFilter{CompanyID: "c1", Start: start, End: start.Add(time.Hour), IncludeCancelled: true})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryFindOverlappingUsesExecutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM schedule_events\\s+WHERE company_id = \\$1 AND technician_id = \\$2 AND start_time < \\$3 AND end_time > \\$4").
		WithArgs("c1", "t1", end, start, models.EventStatusCancelled, "").
		WillReturnRows(scheduleEventRows().
			AddRow("e1", "c1", nil, "t1", nil, "Install", "", start.Add(-30*time.Minute), start.Add(30*time.Minute), "scheduled", "job", "normal", "", 0, 0, []byte(`{}`), start, start))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockTechnician(context.Background(), tx, "t1"))
	events, err := repo.FindOverlapping(context.Background(), tx, "c1", "t1", start, end, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Overlaps(start, end))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	mock.ExpectExec("INSERT INTO schedule_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	tech := "t1"
	event := &models.ScheduleEvent{CompanyID: "c1", TechnicianID: &tech, Title: "Install",
		StartTime: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), EndTime: time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Create(context.Background(), nil, event))

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, models.EventStatusScheduled, event.Status)
	assert.Equal(t, models.EventTypeJob, event.EventType)
	assert.Equal(t, models.PriorityNormal, event.Priority)
	assert.JSONEq(t, `{}`, string(event.Metadata))
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryCreateGeneratedSkipsDuplicates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	mock.ExpectExec("ON CONFLICT \\(recurring_schedule_id, start_time\\)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("ON CONFLICT \\(recurring_schedule_id, start_time\\)").
		WillReturnResult(sqlmock.NewResult(0, 0))

	scheduleID := "rs1"
	first := &models.ScheduleEvent{CompanyID: "c1", RecurringScheduleID: &scheduleID, Title: "Check"}
	inserted, err := repo.CreateGenerated(context.Background(), nil, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := &models.ScheduleEvent{CompanyID: "c1", RecurringScheduleID: &scheduleID, Title: "Check"}
	inserted, err = repo.CreateGenerated(context.Background(), nil, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryExistsAt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM schedule_events WHERE recurring_schedule_id = $1 AND start_time = $2)")).
		WithArgs("rs1", start).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsAt(context.Background(), "rs1", start)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_events WHERE company_id = $1 AND id = $2")).
		WithArgs("c1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "c1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_events SET status = $1, updated_at = $2 WHERE company_id = $3 AND id = $4")).
		WithArgs(models.EventStatusCompleted, sqlmock.AnyArg(), "c1", "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "c1", "e1", models.EventStatusCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEventRepositoryDetachAndDeleteFuture(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEventRepository(db)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_events SET recurring_schedule_id = NULL")).
		WithArgs(sqlmock.AnyArg(), "rs1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_events WHERE recurring_schedule_id = $1 AND start_time >= $2")).
		WithArgs("rs2", from).
		WillReturnResult(sqlmock.NewResult(0, 3))

	detached, err := repo.DetachFromSchedule(context.Background(), nil, "rs1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, detached)

	removed, err := repo.DeleteFutureBySchedule(context.Background(), nil, "rs2", from)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
