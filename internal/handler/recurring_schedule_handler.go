package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/response"
)

type recurringScheduleService interface {
	List(ctx context.Context, companyID string, query dto.RecurringScheduleQuery) ([]models.RecurringSchedule, *models.Pagination, error)
	Get(ctx context.Context, companyID, id string) (*models.RecurringSchedule, error)
	Create(ctx context.Context, companyID string, req dto.RecurringScheduleRequest) (*models.RecurringSchedule, error)
	Update(ctx context.Context, companyID, id string, req dto.RecurringScheduleRequest) (*models.RecurringSchedule, error)
	Delete(ctx context.Context, companyID, id string, keepEvents bool) error
	Generate(ctx context.Context, companyID, scheduleID string, req dto.GenerateEventsRequest) (*dto.GenerateEventsResponse, error)
	NextOccurrence(ctx context.Context, companyID, scheduleID string, from time.Time) (*dto.NextOccurrenceResponse, error)
	Regenerate(ctx context.Context, companyID string, req dto.RegenerateRequest) (*dto.RegenerateResponse, error)
}

// RecurringScheduleHandler manages recurring schedules and their materialised events.
type RecurringScheduleHandler struct {
	service recurringScheduleService
}

// NewRecurringScheduleHandler constructs the handler.
func NewRecurringScheduleHandler(service recurringScheduleService) *RecurringScheduleHandler {
	return &RecurringScheduleHandler{service: service}
}

// List godoc
// @Summary List recurring schedules
// @Tags RecurringSchedules
// @Produce json
// @Param technician_id query string false "Technician filter"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /recurring-schedules [get]
func (h *RecurringScheduleHandler) List(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var query dto.RecurringScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	schedules, pagination, err := h.service.List(c.Request.Context(), companyID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get a recurring schedule
// @Tags RecurringSchedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recurring-schedules/{id} [get]
func (h *RecurringScheduleHandler) Get(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	schedule, err := h.service.Get(c.Request.Context(), companyID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Create godoc
// @Summary Create a recurring schedule
// @Tags RecurringSchedules
// @Accept json
// @Produce json
// @Param payload body dto.RecurringScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /recurring-schedules [post]
func (h *RecurringScheduleHandler) Create(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var req dto.RecurringScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recurring schedule payload"))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), companyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update a recurring schedule
// @Tags RecurringSchedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.RecurringScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recurring-schedules/{id} [put]
func (h *RecurringScheduleHandler) Update(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	var req dto.RecurringScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recurring schedule payload"))
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), companyID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete a recurring schedule
// @Description Future generated events are removed unless keep_events=true; past ones are detached.
// @Tags RecurringSchedules
// @Param id path string true "Schedule ID"
// @Param keep_events query bool false "Keep generated events"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /recurring-schedules/{id} [delete]
func (h *RecurringScheduleHandler) Delete(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	if err := h.service.Delete(c.Request.Context(), companyID, id, parseQueryBool(c, "keep_events")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Generate godoc
// @Summary Materialise schedule occurrences into events
// @Tags RecurringSchedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.GenerateEventsRequest true "Date window"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /recurring-schedules/{id}/generate [post]
func (h *RecurringScheduleHandler) Generate(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	var req dto.GenerateEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), companyID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// NextOccurrence godoc
// @Summary Next occurrence of a schedule
// @Tags RecurringSchedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Param from query string false "Search start, defaults to now"
// @Success 200 {object} response.Envelope
// @Router /recurring-schedules/{id}/next-occurrence [get]
func (h *RecurringScheduleHandler) NextOccurrence(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	var from time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := parseInstant(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		from = parsed
	}
	result, err := h.service.NextOccurrence(c.Request.Context(), companyID, id, from)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Regenerate godoc
// @Summary Queue regeneration of every active schedule
// @Tags RecurringSchedules
// @Accept json
// @Produce json
// @Param payload body dto.RegenerateRequest false "Horizon"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /recurring-schedules/regenerate [post]
func (h *RecurringScheduleHandler) Regenerate(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var req dto.RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid regeneration payload"))
			return
		}
	}
	result, err := h.service.Regenerate(c.Request.Context(), companyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}
