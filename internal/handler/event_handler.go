package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/response"
)

type bookingService interface {
	Book(ctx context.Context, companyID string, req dto.BookEventRequest) (*models.BookingResult, error)
	Reschedule(ctx context.Context, companyID, eventID string, req dto.RescheduleEventRequest) (*models.BookingResult, error)
	UpdateStatus(ctx context.Context, companyID, eventID string, req dto.UpdateEventStatusRequest) (*models.ScheduleEvent, error)
	Cancel(ctx context.Context, companyID, eventID string) error
}

// EventHandler books and maintains calendar events.
type EventHandler struct {
	service bookingService
}

// NewEventHandler constructs the handler.
func NewEventHandler(service bookingService) *EventHandler {
	return &EventHandler{service: service}
}

// Book godoc
// @Summary Book an event on a technician's calendar
// @Description Answers 409 with the clashing events and alternative slots when the window is taken.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.BookEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Book(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var req dto.BookEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	result, err := h.service.Book(c.Request.Context(), companyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Booked() {
		response.Conflict(c, result, appErrors.ErrSlotUnavailable)
		return
	}
	response.Created(c, result)
}

// Reschedule godoc
// @Summary Move an event to a new window
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.RescheduleEventRequest true "New window"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/reschedule [put]
func (h *EventHandler) Reschedule(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	var req dto.RescheduleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	result, err := h.service.Reschedule(c.Request.Context(), companyID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Booked() {
		response.Conflict(c, result, appErrors.ErrSlotUnavailable)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateStatus godoc
// @Summary Change an event's status
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateEventStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/status [patch]
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	var req dto.UpdateEventStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	event, err := h.service.UpdateStatus(c.Request.Context(), companyID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Cancel godoc
// @Summary Delete an event
// @Tags Events
// @Param id path string true "Event ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Cancel(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), companyID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
