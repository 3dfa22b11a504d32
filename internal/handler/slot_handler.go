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

type slotService interface {
	ResolveSlots(ctx context.Context, companyID, technicianID string, start, end time.Time, durationMinutes, bufferMinutes int) ([]models.Slot, error)
}

type conflictService interface {
	DetectConflicts(ctx context.Context, companyID string, technicianIDs []string, start, end time.Time) (*models.ConflictReport, error)
	IsSlotAvailable(ctx context.Context, companyID, technicianID string, start, end time.Time, ignoreEventID string) (bool, error)
}

// SlotHandler serves free-slot search and calendar conflict checks.
type SlotHandler struct {
	slots           slotService
	conflicts       conflictService
	defaultDuration int
}

// NewSlotHandler constructs the handler. defaultDuration applies when a request omits duration_minutes.
func NewSlotHandler(slots slotService, conflicts conflictService, defaultDuration int) *SlotHandler {
	if defaultDuration <= 0 {
		defaultDuration = 60
	}
	return &SlotHandler{slots: slots, conflicts: conflicts, defaultDuration: defaultDuration}
}

// Slots godoc
// @Summary List bookable slots for a technician
// @Tags Slots
// @Produce json
// @Param id path string true "Technician ID"
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Param duration_minutes query int false "Slot length in minutes"
// @Param buffer_minutes query int false "Gap kept around existing events"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /technicians/{id}/slots [get]
func (h *SlotHandler) Slots(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	technicianID := requireParam(c, "id")
	if technicianID == "" {
		return
	}
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}
	duration, err := parseQueryInt(c, "duration_minutes", h.defaultDuration)
	if err != nil {
		response.Error(c, err)
		return
	}
	buffer, err := parseQueryInt(c, "buffer_minutes", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, err := h.slots.ResolveSlots(c.Request.Context(), companyID, technicianID, start, end, duration, buffer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil, map[string]interface{}{"count": len(slots)})
}

// SlotCheck godoc
// @Summary Check whether a technician is free in a window
// @Tags Slots
// @Produce json
// @Param id path string true "Technician ID"
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Param ignore_event_id query string false "Event excluded from the check"
// @Success 200 {object} response.Envelope
// @Router /technicians/{id}/slot-check [get]
func (h *SlotHandler) SlotCheck(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	technicianID := requireParam(c, "id")
	if technicianID == "" {
		return
	}
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}

	available, err := h.conflicts.IsSlotAvailable(c.Request.Context(), companyID, technicianID, start, end, c.Query("ignore_event_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SlotCheckResponse{
		TechnicianID: technicianID,
		Start:        start,
		End:          end,
		Available:    available,
	}, nil)
}

// DetectConflicts godoc
// @Summary Detect overlapping events and overloaded days
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.DetectConflictsRequest true "Technicians and window"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /conflicts/detect [post]
func (h *SlotHandler) DetectConflicts(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var req dto.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict detection payload"))
		return
	}
	report, err := h.conflicts.DetectConflicts(c.Request.Context(), companyID, req.TechnicianIDs, req.Start, req.End)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
