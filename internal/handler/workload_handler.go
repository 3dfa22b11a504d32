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

type workloadService interface {
	Balance(ctx context.Context, companyID string, technicianIDs []string, start, end time.Time) (*models.WorkloadReport, error)
}

type assignmentService interface {
	AutoAssign(ctx context.Context, companyID, jobID string, req dto.AutoAssignRequest) (*models.AssignmentResult, error)
}

// DispatchHandler exposes workload balancing and automatic job assignment.
type DispatchHandler struct {
	workload    workloadService
	assignments assignmentService
}

// NewDispatchHandler constructs the handler.
func NewDispatchHandler(workload workloadService, assignments assignmentService) *DispatchHandler {
	return &DispatchHandler{workload: workload, assignments: assignments}
}

// Balance godoc
// @Summary Workload snapshots and redistribution advice
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param payload body dto.BalanceWorkloadRequest true "Technicians and window"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workload/balance [post]
func (h *DispatchHandler) Balance(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	var req dto.BalanceWorkloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workload payload"))
		return
	}
	report, err := h.workload.Balance(c.Request.Context(), companyID, req.TechnicianIDs, req.Start, req.End)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// AutoAssign godoc
// @Summary Pick the best available technician for a job
// @Description A null technician_id means nobody is free in the window.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body dto.AutoAssignRequest true "Window and preferences"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id}/auto-assign [post]
func (h *DispatchHandler) AutoAssign(c *gin.Context) {
	companyID := requireCompany(c)
	if companyID == "" {
		return
	}
	jobID := requireParam(c, "id")
	if jobID == "" {
		return
	}
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid auto-assign payload"))
		return
	}
	result, err := h.assignments.AutoAssign(c.Request.Context(), companyID, jobID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
