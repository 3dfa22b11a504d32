package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

// ConflictService reports double bookings and overloaded days. It never mutates events.
type ConflictService struct {
	events  eventRangeReader
	metrics *MetricsService
	logger  *zap.Logger
	cfg     SchedulingConfig
}

// NewConflictService constructs a ConflictService.
func NewConflictService(events eventRangeReader, metrics *MetricsService, logger *zap.Logger, cfg SchedulingConfig) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{events: events, metrics: metrics, logger: logger, cfg: cfg.withDefaults()}
}

// DetectConflicts scans the technicians' active events intersecting [start, end). Every intersecting pair
// of events yields an overlap conflict; every calendar day holding more events than the workload
// threshold yields a workload conflict.
func (s *ConflictService) DetectConflicts(ctx context.Context, companyID string, technicianIDs []string, start, end time.Time) (*models.ConflictReport, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	ids := normalizeIDs(technicianIDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one technician_id is required")
	}

	events, err := s.events.ListInRange(ctx, models.EventFilter{CompanyID: companyID, TechnicianIDs: ids, Start: start, End: end})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}

	grouped := make(map[string][]models.ScheduleEvent, len(ids))
	total := 0
	for _, event := range events {
		if event.Status == models.EventStatusCancelled || event.TechnicianID == nil {
			continue
		}
		grouped[*event.TechnicianID] = append(grouped[*event.TechnicianID], event)
		total++
	}

	report := &models.ConflictReport{
		CompanyID:     companyID,
		TechnicianIDs: ids,
		Start:         start,
		End:           end,
		TotalEvents:   total,
		Conflicts:     make([]models.Conflict, 0),
	}
	for _, technicianID := range ids {
		list := grouped[technicianID]
		sortEvents(list)
		report.Conflicts = append(report.Conflicts, overlapConflicts(technicianID, list)...)
		report.Conflicts = append(report.Conflicts, s.workloadConflicts(technicianID, list)...)
	}

	s.metrics.RecordConflicts(report.Conflicts)
	if report.HasConflicts() {
		s.logger.Info("scheduling conflicts detected",
			zap.String("company_id", companyID),
			zap.Int("technicians", len(ids)),
			zap.Int("conflicts", len(report.Conflicts)))
	}
	return report, nil
}

// IsSlotAvailable reports whether no active event of the technician intersects [start, end). The event
// named by ignoreEventID is left out so an event can be moved onto its own time.
func (s *ConflictService) IsSlotAvailable(ctx context.Context, companyID, technicianID string, start, end time.Time, ignoreEventID string) (bool, error) {
	if technicianID == "" {
		return false, appErrors.Clone(appErrors.ErrValidation, "technician_id is required")
	}
	if err := validateWindow(start, end); err != nil {
		return false, err
	}
	events, err := s.events.ListInRange(ctx, models.EventFilter{CompanyID: companyID, TechnicianIDs: []string{technicianID}, Start: start, End: end})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}
	for _, event := range events {
		if event.ID == ignoreEventID || event.Status == models.EventStatusCancelled {
			continue
		}
		if event.Technician() == technicianID && event.Overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}

// overlapConflicts expects events sorted by start. Since later events start no earlier, scanning stops
// at the first event that starts after the current one ends.
func overlapConflicts(technicianID string, events []models.ScheduleEvent) []models.Conflict {
	var conflicts []models.Conflict
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if !events[j].StartTime.Before(events[i].EndTime) {
				break
			}
			a, b := events[i], events[j]
			conflicts = append(conflicts, models.Conflict{
				TechnicianID: technicianID,
				Type:         models.ConflictTypeOverlap,
				Events:       []models.EventSummary{a.Summary(), b.Summary()},
				Message:      fmt.Sprintf("event %q overlaps event %q", a.Title, b.Title),
			})
		}
	}
	return conflicts
}

func (s *ConflictService) workloadConflicts(technicianID string, events []models.ScheduleEvent) []models.Conflict {
	counts := make(map[string]int)
	var days []string
	for _, event := range events {
		day := event.StartTime.In(s.cfg.Location).Format(models.DateLayout)
		if counts[day] == 0 {
			days = append(days, day)
		}
		counts[day]++
	}
	sort.Strings(days)

	var conflicts []models.Conflict
	for _, day := range days {
		if counts[day] <= s.cfg.WorkloadThreshold {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			TechnicianID: technicianID,
			Type:         models.ConflictTypeWorkload,
			Date:         day,
			Count:        counts[day],
			Threshold:    s.cfg.WorkloadThreshold,
			Message:      fmt.Sprintf("%d events on %s exceed the daily limit of %d", counts[day], day, s.cfg.WorkloadThreshold),
		})
	}
	return conflicts
}

func sortEvents(events []models.ScheduleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
}

// normalizeIDs trims, drops blanks and duplicates, and sorts.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
