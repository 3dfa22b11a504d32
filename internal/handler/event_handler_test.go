package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/middleware"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type bookingServiceMock struct {
	result    *models.BookingResult
	event     *models.ScheduleEvent
	err       error
	companyID string
	eventID   string
	booked    dto.BookEventRequest
}

func (m *bookingServiceMock) Book(ctx context.Context, companyID string, req dto.BookEventRequest) (*models.BookingResult, error) {
	m.companyID = companyID
	m.booked = req
	return m.result, m.err
}

func (m *bookingServiceMock) Reschedule(ctx context.Context, companyID, eventID string, req dto.RescheduleEventRequest) (*models.BookingResult, error) {
	m.companyID, m.eventID = companyID, eventID
	return m.result, m.err
}

func (m *bookingServiceMock) UpdateStatus(ctx context.Context, companyID, eventID string, req dto.UpdateEventStatusRequest) (*models.ScheduleEvent, error) {
	m.eventID = eventID
	return m.event, m.err
}

func (m *bookingServiceMock) Cancel(ctx context.Context, companyID, eventID string) error {
	m.eventID = eventID
	return m.err
}

const bookBody = `{"technician_id":"tech-1","title":"Boiler","start_time":"2024-01-02T10:00:00Z","end_time":"2024-01-02T11:00:00Z"}`

func TestEventHandlerBookCreated(t *testing.T) {
	svc := &bookingServiceMock{result: &models.BookingResult{Status: models.BookingStatusBooked, Event: &models.ScheduleEvent{ID: "evt-1"}}}
	c, w := newTestContext(http.MethodPost, "/events", []byte(bookBody))

	NewEventHandler(svc).Book(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "company-1", svc.companyID)
	assert.Equal(t, "tech-1", svc.booked.TechnicianID)
	assert.Equal(t, 10, svc.booked.StartTime.Hour())
}

func TestEventHandlerBookConflictAnswers409WithResult(t *testing.T) {
	svc := &bookingServiceMock{result: &models.BookingResult{
		Status:    models.BookingStatusConflict,
		Reason:    appErrors.ErrSlotUnavailable.Message,
		Conflicts: []models.EventSummary{{ID: "evt-busy"}},
	}}
	c, w := newTestContext(http.MethodPost, "/events", []byte(bookBody))

	NewEventHandler(svc).Book(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, env.Error.Code)
	var result models.BookingResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.BookingStatusConflict, result.Status)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "evt-busy", result.Conflicts[0].ID)
}

func TestEventHandlerBookRejectsBadJSON(t *testing.T) {
	svc := &bookingServiceMock{}
	c, w := newTestContext(http.MethodPost, "/events", []byte(`{"title":`))

	NewEventHandler(svc).Book(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.companyID)
}

func TestEventHandlerRequiresCompany(t *testing.T) {
	svc := &bookingServiceMock{}
	c, w := newTestContext(http.MethodPost, "/events", []byte(bookBody))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	NewEventHandler(svc).Book(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventHandlerReschedule(t *testing.T) {
	svc := &bookingServiceMock{result: &models.BookingResult{Status: models.BookingStatusBooked}}
	body := []byte(`{"start_time":"2024-01-02T12:00:00Z","end_time":"2024-01-02T13:00:00Z"}`)
	c, w := newTestContext(http.MethodPut, "/events/evt-1/reschedule", body, gin.Param{Key: "id", Value: "evt-1"})

	NewEventHandler(svc).Reschedule(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "evt-1", svc.eventID)
}

func TestEventHandlerUpdateStatusNotFound(t *testing.T) {
	svc := &bookingServiceMock{err: appErrors.ErrNotFound}
	c, w := newTestContext(http.MethodPatch, "/events/evt-9/status", []byte(`{"status":"completed"}`), gin.Param{Key: "id", Value: "evt-9"})

	NewEventHandler(svc).UpdateStatus(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHandlerCancel(t *testing.T) {
	svc := &bookingServiceMock{}
	c, _ := newTestContext(http.MethodDelete, "/events/evt-1", nil, gin.Param{Key: "id", Value: "evt-1"})

	NewEventHandler(svc).Cancel(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "evt-1", svc.eventID)
}
