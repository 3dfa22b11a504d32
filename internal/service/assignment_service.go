package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type technicianDirectory interface {
	List(ctx context.Context, filter models.TechnicianFilter) ([]models.Technician, error)
}

type jobReader interface {
	FindByID(ctx context.Context, companyID, id string) (*models.Job, error)
}

type slotAvailabilityChecker interface {
	IsSlotAvailable(ctx context.Context, companyID, technicianID string, start, end time.Time, ignoreEventID string) (bool, error)
}

type workloadSnapshotter interface {
	Snapshot(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.WorkloadSnapshot, error)
}

const hoursWeight = 10.0

// AssignmentService picks the best technician for a job.
type AssignmentService struct {
	technicians technicianDirectory
	jobs        jobReader
	slots       slotAvailabilityChecker
	workload    workloadSnapshotter
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SchedulingConfig
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(
	technicians technicianDirectory,
	jobs jobReader,
	slots slotAvailabilityChecker,
	workload workloadSnapshotter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		technicians: technicians,
		jobs:        jobs,
		slots:       slots,
		workload:    workload,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg.withDefaults(),
	}
}

// AutoAssign scores every active field technician who is free for the whole window. The score is
// (100 - utilization) + 10 * available hours over the day the window starts on. The highest score
// wins with ties going to the lowest technician id.
func (s *AssignmentService) AutoAssign(ctx context.Context, companyID, jobID string, req dto.AutoAssignRequest) (*models.AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-assign payload")
	}
	if err := validateWindow(req.Start, req.End); err != nil {
		return nil, err
	}

	if _, err := s.jobs.FindByID(ctx, companyID, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}

	active := true
	filter := models.TechnicianFilter{CompanyID: companyID, Role: models.TechnicianRoleTechnician, Active: &active}
	if len(req.PreferredTechnicianIDs) > 0 {
		filter.IDs = normalizeIDs(req.PreferredTechnicianIDs)
	}
	technicians, err := s.technicians.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list technicians")
	}
	sort.Slice(technicians, func(i, j int) bool { return technicians[i].ID < technicians[j].ID })

	dayStart := startOfDay(req.Start.In(s.cfg.Location))
	dayEnd := dayStart.AddDate(0, 0, 1)

	candidates := make([]models.AssignmentCandidate, 0, len(technicians))
	for _, technician := range technicians {
		if !technician.Active || technician.Role != models.TechnicianRoleTechnician {
			continue
		}
		free, err := s.slots.IsSlotAvailable(ctx, companyID, technician.ID, req.Start, req.End, "")
		if err != nil {
			return nil, err
		}
		candidate := models.AssignmentCandidate{TechnicianID: technician.ID, Available: free}
		if free {
			snapshot, err := s.workload.Snapshot(ctx, companyID, technician.ID, dayStart, dayEnd)
			if err != nil {
				return nil, err
			}
			candidate.Utilization = snapshot.Utilization
			candidate.AvailableHours = snapshot.AvailableHours
			candidate.Score = round2((100 - snapshot.Utilization) + hoursWeight*snapshot.AvailableHours)
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.TechnicianID < b.TechnicianID
	})

	result := &models.AssignmentResult{JobID: jobID, Candidates: candidates}
	if len(candidates) > 0 && candidates[0].Available {
		chosen := candidates[0].TechnicianID
		result.TechnicianID = &chosen
	}

	s.metrics.RecordAutoAssign(result.TechnicianID != nil)
	s.logger.Info("auto-assign evaluated",
		zap.String("company_id", companyID),
		zap.String("job_id", jobID),
		zap.Int("candidates", len(candidates)),
		zap.Bool("assigned", result.TechnicianID != nil))
	return result, nil
}
