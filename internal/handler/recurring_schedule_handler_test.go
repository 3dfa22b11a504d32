package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type recurringScheduleServiceMock struct {
	query      dto.RecurringScheduleQuery
	created    dto.RecurringScheduleRequest
	keepEvents *bool
	from       time.Time
	regenerate *dto.RegenerateRequest
	err        error
}

func (m *recurringScheduleServiceMock) List(ctx context.Context, companyID string, query dto.RecurringScheduleQuery) ([]models.RecurringSchedule, *models.Pagination, error) {
	m.query = query
	return []models.RecurringSchedule{{ID: "sched-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.err
}

func (m *recurringScheduleServiceMock) Get(ctx context.Context, companyID, id string) (*models.RecurringSchedule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.RecurringSchedule{ID: id, CompanyID: companyID}, nil
}

func (m *recurringScheduleServiceMock) Create(ctx context.Context, companyID string, req dto.RecurringScheduleRequest) (*models.RecurringSchedule, error) {
	m.created = req
	return &models.RecurringSchedule{ID: "sched-new"}, m.err
}

func (m *recurringScheduleServiceMock) Update(ctx context.Context, companyID, id string, req dto.RecurringScheduleRequest) (*models.RecurringSchedule, error) {
	return &models.RecurringSchedule{ID: id}, m.err
}

func (m *recurringScheduleServiceMock) Delete(ctx context.Context, companyID, id string, keepEvents bool) error {
	m.keepEvents = &keepEvents
	return m.err
}

func (m *recurringScheduleServiceMock) Generate(ctx context.Context, companyID, scheduleID string, req dto.GenerateEventsRequest) (*dto.GenerateEventsResponse, error) {
	return &dto.GenerateEventsResponse{ScheduleID: scheduleID, Skipped: 2}, m.err
}

func (m *recurringScheduleServiceMock) NextOccurrence(ctx context.Context, companyID, scheduleID string, from time.Time) (*dto.NextOccurrenceResponse, error) {
	m.from = from
	return &dto.NextOccurrenceResponse{ScheduleID: scheduleID, From: from}, m.err
}

func (m *recurringScheduleServiceMock) Regenerate(ctx context.Context, companyID string, req dto.RegenerateRequest) (*dto.RegenerateResponse, error) {
	m.regenerate = &req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RegenerateResponse{Queued: 3}, nil
}

func TestRecurringScheduleHandlerListBindsQuery(t *testing.T) {
	svc := &recurringScheduleServiceMock{}
	c, w := newTestContext(http.MethodGet, "/recurring-schedules?technician_id=tech-1&status=active&page=2&page_size=10", nil)

	NewRecurringScheduleHandler(svc).List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.RecurringScheduleQuery{TechnicianID: "tech-1", Status: "active", Page: 2, PageSize: 10}, svc.query)
	assert.Contains(t, w.Body.String(), `"total_count":1`)
}

func TestRecurringScheduleHandlerCreate(t *testing.T) {
	svc := &recurringScheduleServiceMock{}
	body := []byte(`{"frequency":"weekly","interval":2,"weekdays":[1,3],"start_date":"2024-01-01T09:00:00Z","constraints":{"duration_minutes":90}}`)
	c, w := newTestContext(http.MethodPost, "/recurring-schedules", body)

	NewRecurringScheduleHandler(svc).Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "weekly", svc.created.Frequency)
	assert.Equal(t, []int64{1, 3}, svc.created.Weekdays)
	assert.Equal(t, 2, svc.created.Interval)
}

func TestRecurringScheduleHandlerGetNotFound(t *testing.T) {
	svc := &recurringScheduleServiceMock{err: appErrors.ErrNotFound}
	c, w := newTestContext(http.MethodGet, "/recurring-schedules/sched-9", nil, gin.Param{Key: "id", Value: "sched-9"})

	NewRecurringScheduleHandler(svc).Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecurringScheduleHandlerDeleteKeepEvents(t *testing.T) {
	for target, want := range map[string]bool{
		"/recurring-schedules/sched-1":                  false,
		"/recurring-schedules/sched-1?keep_events=true": true,
		"/recurring-schedules/sched-1?keep_events=nope": false,
	} {
		svc := &recurringScheduleServiceMock{}
		c, _ := newTestContext(http.MethodDelete, target, nil, gin.Param{Key: "id", Value: "sched-1"})

		NewRecurringScheduleHandler(svc).Delete(c)

		assert.Equal(t, http.StatusNoContent, c.Writer.Status(), target)
		require.NotNil(t, svc.keepEvents, target)
		assert.Equal(t, want, *svc.keepEvents, target)
	}
}

func TestRecurringScheduleHandlerNextOccurrence(t *testing.T) {
	svc := &recurringScheduleServiceMock{}
	c, w := newTestContext(http.MethodGet, "/recurring-schedules/sched-1/next-occurrence?from=2024-02-01", nil, gin.Param{Key: "id", Value: "sched-1"})

	NewRecurringScheduleHandler(svc).NextOccurrence(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), svc.from)

	svc = &recurringScheduleServiceMock{}
	c, w = newTestContext(http.MethodGet, "/recurring-schedules/sched-1/next-occurrence", nil, gin.Param{Key: "id", Value: "sched-1"})
	NewRecurringScheduleHandler(svc).NextOccurrence(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.from.IsZero())
}

func TestRecurringScheduleHandlerRegenerate(t *testing.T) {
	svc := &recurringScheduleServiceMock{}
	c, w := newTestContext(http.MethodPost, "/recurring-schedules/regenerate", []byte(`{"horizon_days":14}`))

	NewRecurringScheduleHandler(svc).Regenerate(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, svc.regenerate)
	assert.Equal(t, 14, svc.regenerate.HorizonDays)
}

func TestRecurringScheduleHandlerRegenerateWithoutBody(t *testing.T) {
	svc := &recurringScheduleServiceMock{err: appErrors.ErrServiceUnavailable}
	c, w := newTestContext(http.MethodPost, "/recurring-schedules/regenerate", nil)

	NewRecurringScheduleHandler(svc).Regenerate(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, svc.regenerate)
	assert.Zero(t, svc.regenerate.HorizonDays)
}

func TestRecurringScheduleHandlerGenerate(t *testing.T) {
	svc := &recurringScheduleServiceMock{}
	body := []byte(`{"start":"2024-01-01T00:00:00Z","end":"2024-01-05T00:00:00Z"}`)
	c, w := newTestContext(http.MethodPost, "/recurring-schedules/sched-1/generate", body, gin.Param{Key: "id", Value: "sched-1"})

	NewRecurringScheduleHandler(svc).Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"skipped":2`)
}
