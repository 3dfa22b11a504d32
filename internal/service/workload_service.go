package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

const (
	overUtilizedPercent  = 90.0
	underUtilizedPercent = 70.0
	transferTargetRatio  = 0.9
)

// WorkloadService compares booked hours against resolved capacity and suggests how to even it out.
// Recommendations are advisory; no event is moved.
type WorkloadService struct {
	availability availabilityResolver
	events       eventRangeReader
	logger       *zap.Logger
	cfg          SchedulingConfig
}

// NewWorkloadService constructs a WorkloadService.
func NewWorkloadService(availability availabilityResolver, events eventRangeReader, logger *zap.Logger, cfg SchedulingConfig) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadService{availability: availability, events: events, logger: logger, cfg: cfg.withDefaults()}
}

// Snapshot computes the workload of a single technician over [start, end).
func (s *WorkloadService) Snapshot(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.WorkloadSnapshot, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	snapshots, err := s.snapshots(ctx, companyID, []string{technicianID}, start, end)
	if err != nil {
		return nil, err
	}
	return &snapshots[0], nil
}

// Balance builds snapshots for every technician sorted by ascending utilization, plus transfer and
// new-work recommendations.
func (s *WorkloadService) Balance(ctx context.Context, companyID string, technicianIDs []string, start, end time.Time) (*models.WorkloadReport, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	ids := normalizeIDs(technicianIDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one technician_id is required")
	}

	snapshots, err := s.snapshots(ctx, companyID, ids, start, end)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].Utilization != snapshots[j].Utilization {
			return snapshots[i].Utilization < snapshots[j].Utilization
		}
		return snapshots[i].TechnicianID < snapshots[j].TechnicianID
	})

	var sum float64
	for _, snapshot := range snapshots {
		sum += snapshot.Utilization
	}

	report := &models.WorkloadReport{
		CompanyID:          companyID,
		Start:              start,
		End:                end,
		Snapshots:          snapshots,
		AverageUtilization: round2(sum / float64(len(snapshots))),
		Recommendations:    recommend(snapshots),
	}
	s.logger.Debug("workload balanced",
		zap.String("company_id", companyID),
		zap.Int("technicians", len(snapshots)),
		zap.Int("recommendations", len(report.Recommendations)))
	return report, nil
}

func (s *WorkloadService) snapshots(ctx context.Context, companyID string, ids []string, start, end time.Time) ([]models.WorkloadSnapshot, error) {
	events, err := s.events.ListInRange(ctx, models.EventFilter{CompanyID: companyID, TechnicianIDs: ids, Start: start, End: end})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}
	booked := make(map[string]float64, len(ids))
	jobs := make(map[string]int, len(ids))
	for _, event := range events {
		if event.Status == models.EventStatusCancelled || event.TechnicianID == nil {
			continue
		}
		clipped := minTime(event.EndTime, end).Sub(maxTime(event.StartTime, start))
		if clipped <= 0 {
			continue
		}
		booked[*event.TechnicianID] += clipped.Hours()
		if event.EventType == models.EventTypeJob {
			jobs[*event.TechnicianID]++
		}
	}

	days := windowDays(start, end, s.cfg.Location)
	snapshots := make([]models.WorkloadSnapshot, 0, len(ids))
	for _, id := range ids {
		availability, _, err := s.availability.Resolve(ctx, companyID, id, start, end)
		if err != nil {
			return nil, err
		}
		var capacity float64
		for _, day := range days {
			capacity += availability.For(day).Capacity(day, s.cfg.Location)
		}
		snapshots = append(snapshots, newSnapshot(id, booked[id], jobs[id], capacity))
	}
	return snapshots, nil
}

func newSnapshot(technicianID string, booked float64, jobs int, capacity float64) models.WorkloadSnapshot {
	snapshot := models.WorkloadSnapshot{
		TechnicianID: technicianID,
		BookedHours:  round2(booked),
		JobCount:     jobs,
		MaxHours:     round2(capacity),
	}
	if capacity > 0 {
		snapshot.Utilization = round2(booked / capacity * 100)
	}
	if available := capacity - booked; available > 0 {
		snapshot.AvailableHours = round2(available)
	}
	return snapshot
}

// recommend expects snapshots sorted by ascending utilization. Over-utilized technicians are served
// most loaded first; each transfer is deducted from the destination's remaining hours.
func recommend(snapshots []models.WorkloadSnapshot) []models.WorkloadRecommendation {
	recommendations := make([]models.WorkloadRecommendation, 0)
	if len(snapshots) == 0 {
		return recommendations
	}

	remaining := make(map[string]float64, len(snapshots))
	for _, snapshot := range snapshots {
		remaining[snapshot.TechnicianID] = snapshot.AvailableHours
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		over := snapshots[i]
		if over.Utilization <= overUtilizedPercent {
			continue
		}
		var target *models.WorkloadSnapshot
		for j := range snapshots {
			candidate := &snapshots[j]
			if candidate.TechnicianID == over.TechnicianID || candidate.Utilization >= underUtilizedPercent {
				continue
			}
			if target == nil || remaining[candidate.TechnicianID] > remaining[target.TechnicianID] ||
				(remaining[candidate.TechnicianID] == remaining[target.TechnicianID] && candidate.TechnicianID < target.TechnicianID) {
				target = candidate
			}
		}
		if target == nil {
			continue
		}
		excess := over.BookedHours - transferTargetRatio*over.MaxHours
		hours := round2(minFloat(excess, remaining[target.TechnicianID]))
		if hours <= 0 {
			continue
		}
		remaining[target.TechnicianID] -= hours
		recommendations = append(recommendations, models.WorkloadRecommendation{
			Type:             models.RecommendationRedistribute,
			FromTechnicianID: over.TechnicianID,
			ToTechnicianID:   target.TechnicianID,
			Hours:            hours,
			Reason: fmt.Sprintf("%s is at %.1f%% utilization; %s is at %.1f%%",
				over.TechnicianID, over.Utilization, target.TechnicianID, target.Utilization),
		})
	}

	lowest := snapshots[0]
	recommendations = append(recommendations, models.WorkloadRecommendation{
		Type:           models.RecommendationAssignNewWork,
		ToTechnicianID: lowest.TechnicianID,
		Reason:         fmt.Sprintf("lowest utilization at %.1f%% with %.2f hours available", lowest.Utilization, lowest.AvailableHours),
	})
	return recommendations
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
