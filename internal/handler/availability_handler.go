package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/middleware"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/response"
)

type availabilityService interface {
	Resolve(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.ResolvedAvailability, bool, error)
	UpsertRule(ctx context.Context, companyID string, req dto.UpsertAvailabilityRuleRequest) (*models.AvailabilityRule, error)
	DeleteRule(ctx context.Context, companyID, id string) error
}

// AvailabilityHandler exposes technician availability and the rules behind it.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Resolve godoc
// @Summary Resolve technician availability
// @Description Per-day working windows after company and technician rules are merged.
// @Tags Availability
// @Produce json
// @Param id path string true "Technician ID"
// @Param start query string true "Window start (RFC3339 or YYYY-MM-DD)"
// @Param end query string true "Window end (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /technicians/{id}/availability [get]
func (h *AvailabilityHandler) Resolve(c *gin.Context) {
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

	resolved, hit, err := h.service.Resolve(c.Request.Context(), companyID, technicianID, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, resolved, nil, middleware.ExtractMeta(c))
}

// UpsertRule godoc
// @Summary Create or replace an availability rule
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.UpsertAvailabilityRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability-rules [put]
func (h *AvailabilityHandler) UpsertRule(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var req dto.UpsertAvailabilityRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability rule payload"))
		return
	}
	rule, err := h.service.UpsertRule(c.Request.Context(), companyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// DeleteRule godoc
// @Summary Delete an availability rule
// @Tags Availability
// @Param id path string true "Rule ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /availability-rules/{id} [delete]
func (h *AvailabilityHandler) DeleteRule(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	id := requireParam(c, "id")
	if id == "" {
		return
	}
	if err := h.service.DeleteRule(c.Request.Context(), companyID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
