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

type routeService interface {
	Optimize(ctx context.Context, req dto.OptimizeRouteRequest) (*models.OptimizedRoute, error)
}

// RouteHandler orders a technician's stops.
type RouteHandler struct {
	service routeService
}

// NewRouteHandler constructs the handler.
func NewRouteHandler(service routeService) *RouteHandler {
	return &RouteHandler{service: service}
}

// Optimize godoc
// @Summary Sequence locations into a route
// @Tags Routes
// @Accept json
// @Produce json
// @Param payload body dto.OptimizeRouteRequest true "Locations"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /routes/optimize [post]
func (h *RouteHandler) Optimize(c *gin.Context) {
	if companyID := requireCompany(c); companyID == "" {
		return
	}
	var req dto.OptimizeRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid route payload"))
		return
	}
	route, err := h.service.Optimize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, route, nil)
}
