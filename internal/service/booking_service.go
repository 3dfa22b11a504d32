package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

// Postgres codes raised by the no-overlap exclusion constraint and the unique indexes.
const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

type bookingEventStore interface {
	FindByID(ctx context.Context, companyID, id string) (*models.ScheduleEvent, error)
	FindOverlapping(ctx context.Context, exec sqlx.ExtContext, companyID, technicianID string, start, end time.Time, ignoreID string) ([]models.ScheduleEvent, error)
	LockTechnician(ctx context.Context, exec sqlx.ExtContext, technicianID string) error
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) error
	Update(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) error
	UpdateStatus(ctx context.Context, companyID, id string, status models.EventStatus) error
	Delete(ctx context.Context, companyID, id string) error
}

type technicianLookup interface {
	FindByID(ctx context.Context, companyID, id string) (*models.Technician, error)
}

type slotFinder interface {
	ResolveSlots(ctx context.Context, companyID, technicianID string, start, end time.Time, durationMinutes, bufferMinutes int) ([]models.Slot, error)
}

// BookingService places events on technicians' calendars. Writes for one technician are serialised
// with a transaction-scoped advisory lock and backed by the exclusion constraint on schedule_events.
type BookingService struct {
	events      bookingEventStore
	technicians technicianLookup
	slots       slotFinder
	tx          txProvider
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SchedulingConfig
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	events bookingEventStore,
	technicians technicianLookup,
	slots slotFinder,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		events:      events,
		technicians: technicians,
		slots:       slots,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg.withDefaults(),
	}
}

// Book stores a new event unless it collides with an active event of the technician. A collision is
// reported as a conflict result carrying the clashing events and open alternatives on the same day.
func (s *BookingService) Book(ctx context.Context, companyID string, req dto.BookEventRequest) (*models.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	technicianID := strings.TrimSpace(req.TechnicianID)
	if err := s.ensureTechnician(ctx, companyID, technicianID); err != nil {
		return nil, err
	}

	metadata := types.JSONText(`{}`)
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid metadata")
		}
		metadata = types.JSONText(raw)
	}
	eventType := models.EventType(req.EventType)
	if eventType == "" {
		eventType = models.EventTypeJob
	}
	priority := models.EventPriority(req.Priority)
	if priority == "" {
		priority = models.PriorityNormal
	}
	event := &models.ScheduleEvent{
		CompanyID:          companyID,
		JobID:              trimmedOrNil(req.JobID),
		TechnicianID:       &technicianID,
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		StartTime:          req.StartTime.UTC(),
		EndTime:            req.EndTime.UTC(),
		Status:             models.EventStatusScheduled,
		EventType:          eventType,
		Priority:           priority,
		Location:           strings.TrimSpace(req.Location),
		TravelTimeMinutes:  req.TravelTimeMinutes,
		FlexibilityMinutes: req.FlexibilityMinutes,
		Metadata:           metadata,
	}

	result, err := s.place(ctx, event, "", s.events.Create)
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking evaluated",
		zap.String("company_id", companyID),
		zap.String("technician_id", technicianID),
		zap.String("status", string(result.Status)))
	return result, nil
}

// Reschedule moves an event to a new window, optionally onto another technician. The event itself is
// ignored when checking for collisions.
func (s *BookingService) Reschedule(ctx context.Context, companyID, eventID string, req dto.RescheduleEventRequest) (*models.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, companyID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusCompleted || event.Status == models.EventStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot reschedule a %s event", event.Status))
	}

	if technicianID := trimmedOrNil(req.TechnicianID); technicianID != nil {
		if err := s.ensureTechnician(ctx, companyID, *technicianID); err != nil {
			return nil, err
		}
		event.TechnicianID = technicianID
	}
	if event.TechnicianID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "technician_id is required")
	}
	event.StartTime = req.StartTime.UTC()
	event.EndTime = req.EndTime.UTC()

	result, err := s.place(ctx, event, event.ID, s.events.Update)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reschedule evaluated",
		zap.String("company_id", companyID),
		zap.String("event_id", eventID),
		zap.String("technician_id", event.Technician()),
		zap.String("status", string(result.Status)))
	return result, nil
}

// UpdateStatus changes an event's lifecycle status and returns the stored event.
func (s *BookingService) UpdateStatus(ctx context.Context, companyID, eventID string, req dto.UpdateEventStatusRequest) (*models.ScheduleEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if err := s.events.UpdateStatus(ctx, companyID, eventID, models.EventStatus(req.Status)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event status")
	}
	return s.loadEvent(ctx, companyID, eventID)
}

// Cancel deletes an event.
func (s *BookingService) Cancel(ctx context.Context, companyID, eventID string) error {
	if err := s.events.Delete(ctx, companyID, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel event")
	}
	s.logger.Info("event cancelled", zap.String("company_id", companyID), zap.String("event_id", eventID))
	return nil
}

type eventWriter func(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) error

// place runs the lock, re-check and write sequence inside one transaction.
func (s *BookingService) place(ctx context.Context, event *models.ScheduleEvent, ignoreID string, write eventWriter) (result *models.BookingResult, err error) {
	technicianID := event.Technician()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = s.events.LockTechnician(ctx, tx, technicianID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock technician calendar")
	}
	clashes, err := s.events.FindOverlapping(ctx, tx, event.CompanyID, technicianID, event.StartTime, event.EndTime, ignoreID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check overlapping events")
	}
	if len(clashes) > 0 {
		return s.conflict(ctx, event, clashes), nil
	}

	if err = write(ctx, tx, event); err != nil {
		if isOverlapViolation(err) {
			return s.conflict(ctx, event, nil), nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store event")
	}
	if err = tx.Commit(); err != nil {
		if isOverlapViolation(err) {
			return s.conflict(ctx, event, nil), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
	}
	committed = true

	s.metrics.RecordBooking(models.BookingStatusBooked)
	return &models.BookingResult{Status: models.BookingStatusBooked, Event: event}, nil
}

// conflict builds the conflict outcome. Alternatives are best effort.
func (s *BookingService) conflict(ctx context.Context, event *models.ScheduleEvent, clashes []models.ScheduleEvent) *models.BookingResult {
	result := &models.BookingResult{
		Status: models.BookingStatusConflict,
		Reason: appErrors.ErrSlotUnavailable.Message,
	}
	for _, clash := range clashes {
		result.Conflicts = append(result.Conflicts, clash.Summary())
	}

	if s.slots != nil {
		day := startOfDay(event.StartTime.In(s.cfg.Location))
		duration := int(math.Ceil(event.Duration().Minutes()))
		alternatives, err := s.slots.ResolveSlots(ctx, event.CompanyID, event.Technician(), day, day.AddDate(0, 0, 1), duration, event.TravelTimeMinutes)
		if err != nil {
			s.logger.Warn("failed to compute booking alternatives",
				zap.String("technician_id", event.Technician()),
				zap.Error(err))
		} else {
			result.Alternatives = alternatives
		}
	}

	s.metrics.RecordBooking(models.BookingStatusConflict)
	return result
}

func (s *BookingService) ensureTechnician(ctx context.Context, companyID, technicianID string) error {
	if technicianID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "technician_id is required")
	}
	if s.technicians == nil {
		return nil
	}
	technician, err := s.technicians.FindByID(ctx, companyID, technicianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "technician not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technician")
	}
	if !technician.Active {
		return appErrors.Clone(appErrors.ErrValidation, "technician is inactive")
	}
	return nil
}

func (s *BookingService) loadEvent(ctx context.Context, companyID, eventID string) (*models.ScheduleEvent, error) {
	event, err := s.events.FindByID(ctx, companyID, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func isOverlapViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqExclusionViolation || pqErr.Code == pqUniqueViolation
}
