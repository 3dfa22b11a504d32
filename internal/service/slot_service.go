package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type availabilityResolver interface {
	Resolve(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.ResolvedAvailability, bool, error)
}

type eventRangeReader interface {
	ListInRange(ctx context.Context, filter models.EventFilter) ([]models.ScheduleEvent, error)
}

// SlotService enumerates open appointment slots inside a technician's resolved availability.
type SlotService struct {
	availability availabilityResolver
	events       eventRangeReader
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          SchedulingConfig
}

// NewSlotService constructs a SlotService.
func NewSlotService(availability availabilityResolver, events eventRangeReader, metrics *MetricsService, logger *zap.Logger, cfg SchedulingConfig) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{availability: availability, events: events, metrics: metrics, logger: logger, cfg: cfg.withDefaults()}
}

// ResolveSlots returns the open slots of durationMinutes inside [start, end). A candidate is emitted only
// when the candidate widened by bufferMinutes on both sides intersects no active event of the technician.
// Candidates advance by max(duration, buffer) from each day's availability start.
func (s *SlotService) ResolveSlots(ctx context.Context, companyID, technicianID string, start, end time.Time, durationMinutes, bufferMinutes int) ([]models.Slot, error) {
	if technicianID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "technician_id is required")
	}
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "duration must be greater than zero")
	}
	if bufferMinutes < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "buffer must not be negative")
	}

	availability, _, err := s.availability.Resolve(ctx, companyID, technicianID, start, end)
	if err != nil {
		return nil, err
	}

	buffer := time.Duration(bufferMinutes) * time.Minute
	duration := time.Duration(durationMinutes) * time.Minute
	events, err := s.events.ListInRange(ctx, models.EventFilter{
		CompanyID:     companyID,
		TechnicianIDs: []string{technicianID},
		Start:         start.Add(-buffer),
		End:           end.Add(buffer),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technician events")
	}

	step := duration
	if buffer > step {
		step = buffer
	}

	loc := s.cfg.Location
	slots := make([]models.Slot, 0)
	for _, day := range windowDays(start, end, loc) {
		rule := availability.For(day)
		if !rule.IsAvailable {
			continue
		}
		dayStart, dayEnd, err := rule.Window(day, loc)
		if err != nil {
			s.logger.Warn("skipping day with malformed availability",
				zap.String("technician_id", technicianID),
				zap.String("date", rule.Date),
				zap.Error(err))
			continue
		}
		for candidate := dayStart; !candidate.Add(duration).After(dayEnd); candidate = candidate.Add(step) {
			candidateEnd := candidate.Add(duration)
			if candidate.Before(start) || candidateEnd.After(end) {
				continue
			}
			if overlapsAny(events, candidate.Add(-buffer), candidateEnd.Add(buffer)) {
				continue
			}
			slots = append(slots, models.Slot{
				Start:           candidate,
				End:             candidateEnd,
				DurationMinutes: durationMinutes,
				DayOfWeek:       int(candidate.Weekday()),
				Timezone:        loc.String(),
			})
		}
	}

	s.metrics.AddSlotsGenerated(len(slots))
	return slots, nil
}

func overlapsAny(events []models.ScheduleEvent, start, end time.Time) bool {
	for _, event := range events {
		if event.Status == models.EventStatusCancelled {
			continue
		}
		if event.Overlaps(start, end) {
			return true
		}
	}
	return false
}
