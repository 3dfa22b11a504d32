package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	"github.com/noah-isme/fieldservice-api/internal/recurrence"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/jobs"
)

// RegenerationJobType tags queue jobs that materialise a recurring schedule.
const RegenerationJobType = "recurrence.regenerate"

type recurringScheduleStore interface {
	List(ctx context.Context, filter models.RecurringScheduleFilter) ([]models.RecurringSchedule, int, error)
	ListActive(ctx context.Context, companyID string) ([]models.RecurringSchedule, error)
	FindByID(ctx context.Context, companyID, id string) (*models.RecurringSchedule, error)
	Create(ctx context.Context, schedule *models.RecurringSchedule) error
	Update(ctx context.Context, schedule *models.RecurringSchedule) error
	UpdateNextOccurrence(ctx context.Context, id string, next *time.Time) error
	Delete(ctx context.Context, exec sqlx.ExtContext, companyID, id string) error
}

type generatedEventStore interface {
	ExistsAt(ctx context.Context, scheduleID string, start time.Time) (bool, error)
	CreateGenerated(ctx context.Context, exec sqlx.ExtContext, event *models.ScheduleEvent) (bool, error)
	DetachFromSchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error)
	DeleteFutureBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string, from time.Time) (int64, error)
}

type regenerationDispatcher interface {
	Enqueue(job jobs.Job) error
}

// RegenerationPayload is carried by regeneration queue jobs.
type RegenerationPayload struct {
	CompanyID  string
	ScheduleID string
	Start      time.Time
	End        time.Time
}

// RecurrenceConfig tunes recurring schedule materialisation.
type RecurrenceConfig struct {
	Location           *time.Location
	DefaultHorizonDays int
	MaxWindowDays      int
	Now                func() time.Time
}

// RecurrenceService manages recurring schedules and turns them into concrete events.
type RecurrenceService struct {
	schedules recurringScheduleStore
	events    generatedEventStore
	tx        txProvider
	queue     regenerationDispatcher
	engine    *recurrence.Engine
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RecurrenceConfig
}

// NewRecurrenceService constructs a RecurrenceService. A nil queue disables asynchronous regeneration.
func NewRecurrenceService(
	schedules recurringScheduleStore,
	events generatedEventStore,
	tx txProvider,
	queue regenerationDispatcher,
	engine *recurrence.Engine,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RecurrenceConfig,
) *RecurrenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultHorizonDays <= 0 {
		cfg.DefaultHorizonDays = 30
	}
	if cfg.MaxWindowDays <= 0 {
		cfg.MaxWindowDays = 366
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if engine == nil {
		engine = recurrence.NewEngine(cfg.Location)
	}
	return &RecurrenceService{
		schedules: schedules,
		events:    events,
		tx:        tx,
		queue:     queue,
		engine:    engine,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns a page of schedules.
func (s *RecurrenceService) List(ctx context.Context, companyID string, query dto.RecurringScheduleQuery) ([]models.RecurringSchedule, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring schedule query")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size < 1 {
		size = 20
	}
	schedules, total, err := s.schedules.List(ctx, models.RecurringScheduleFilter{
		CompanyID:    companyID,
		TechnicianID: strings.TrimSpace(query.TechnicianID),
		Status:       models.RecurringScheduleStatus(query.Status),
		Page:         page,
		PageSize:     size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recurring schedules")
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single schedule.
func (s *RecurrenceService) Get(ctx context.Context, companyID, id string) (*models.RecurringSchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recurring schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recurring schedule")
	}
	return schedule, nil
}

// Create validates the recurrence rule, computes the first occurrence and stores the schedule.
func (s *RecurrenceService) Create(ctx context.Context, companyID string, req dto.RecurringScheduleRequest) (*models.RecurringSchedule, error) {
	schedule := &models.RecurringSchedule{CompanyID: companyID}
	if err := s.apply(schedule, req); err != nil {
		return nil, err
	}
	if err := s.refreshNext(schedule); err != nil {
		return nil, err
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recurring schedule")
	}
	s.logger.Info("recurring schedule created",
		zap.String("company_id", companyID),
		zap.String("schedule_id", schedule.ID),
		zap.String("frequency", string(schedule.Frequency)))
	return schedule, nil
}

// Update replaces a schedule definition. Events already generated are left untouched.
func (s *RecurrenceService) Update(ctx context.Context, companyID, id string, req dto.RecurringScheduleRequest) (*models.RecurringSchedule, error) {
	schedule, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(schedule, req); err != nil {
		return nil, err
	}
	if err := s.refreshNext(schedule); err != nil {
		return nil, err
	}
	if err := s.schedules.Update(ctx, schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recurring schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update recurring schedule")
	}
	return schedule, nil
}

// Delete removes a schedule. With keepEvents every generated event survives, detached from the
// schedule; otherwise events starting from now on are removed and past ones are detached.
func (s *RecurrenceService) Delete(ctx context.Context, companyID, id string, keepEvents bool) (err error) {
	if _, err = s.Get(ctx, companyID, id); err != nil {
		return err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var removed int64
	if !keepEvents {
		removed, err = s.events.DeleteFutureBySchedule(ctx, tx, id, s.cfg.Now().UTC())
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove generated events")
			return err
		}
	}
	detached, err := s.events.DetachFromSchedule(ctx, tx, id)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to detach generated events")
		return err
	}
	if err = s.schedules.Delete(ctx, tx, companyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "recurring schedule not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete recurring schedule")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit recurring schedule deletion")
		return err
	}

	s.logger.Info("recurring schedule deleted",
		zap.String("company_id", companyID),
		zap.String("schedule_id", id),
		zap.Bool("keep_events", keepEvents),
		zap.Int64("events_removed", removed),
		zap.Int64("events_detached", detached))
	return nil
}

// Generate materialises every occurrence dated within [req.Start, req.End], both dates inclusive in
// the schedule's timezone. Occurrences already stored are skipped, so repeated runs are idempotent.
// The schedule's next occurrence is then recomputed from the day after the window.
func (s *RecurrenceService) Generate(ctx context.Context, companyID, scheduleID string, req dto.GenerateEventsRequest) (*dto.GenerateEventsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation window")
	}
	if req.End.Before(req.Start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
	}
	if req.End.After(req.Start.AddDate(0, 0, s.cfg.MaxWindowDays)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("generation window must not exceed %d days", s.cfg.MaxWindowDays))
	}

	schedule, err := s.Get(ctx, companyID, scheduleID)
	if err != nil {
		return nil, err
	}
	occurrences, err := s.engine.Occurrences(*schedule, req.Start, req.End)
	if err != nil {
		return nil, recurrenceError(err)
	}
	constraints, err := schedule.DecodeConstraints()
	if err != nil {
		return nil, recurrenceError(err)
	}
	if err := s.validator.Struct(constraints); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "recurring schedule has invalid constraints")
	}

	resp := &dto.GenerateEventsResponse{ScheduleID: schedule.ID, Created: make([]models.ScheduleEvent, 0, len(occurrences))}
	for _, occ := range occurrences {
		exists, err := s.events.ExistsAt(ctx, schedule.ID, occ.Start)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check generated events")
		}
		if exists {
			resp.Skipped++
			continue
		}
		event, err := eventFromOccurrence(*schedule, constraints, occ)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build generated event")
		}
		inserted, err := s.events.CreateGenerated(ctx, nil, event)
		if err != nil && isOverlapViolation(err) {
			s.logger.Warn("generated event collides with a booked event",
				zap.String("schedule_id", schedule.ID),
				zap.Time("start", occ.Start))
			resp.Skipped++
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store generated event")
		}
		if !inserted {
			resp.Skipped++
			continue
		}
		resp.Created = append(resp.Created, *event)
	}
	s.metrics.AddEventsMaterialized(len(resp.Created))

	loc, err := recurrence.LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, recurrenceError(err)
	}
	from := recurrence.DateIn(req.End, loc).AddDays(1).At(0, 0, 0, loc)
	next, err := s.engine.NextOccurrence(*schedule, from)
	if err != nil {
		return nil, recurrenceError(err)
	}
	if err := s.schedules.UpdateNextOccurrence(ctx, schedule.ID, next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store next occurrence")
	}
	resp.NextOccurrence = next

	s.logger.Info("recurring events generated",
		zap.String("company_id", companyID),
		zap.String("schedule_id", schedule.ID),
		zap.Int("created", len(resp.Created)),
		zap.Int("skipped", resp.Skipped))
	return resp, nil
}

// NextOccurrence returns the first occurrence starting at or after from. A zero from means now.
func (s *RecurrenceService) NextOccurrence(ctx context.Context, companyID, scheduleID string, from time.Time) (*dto.NextOccurrenceResponse, error) {
	schedule, err := s.Get(ctx, companyID, scheduleID)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = s.cfg.Now().UTC()
	}
	next, err := s.engine.NextOccurrence(*schedule, from)
	if err != nil {
		return nil, recurrenceError(err)
	}
	return &dto.NextOccurrenceResponse{ScheduleID: schedule.ID, From: from, NextOccurrence: next}, nil
}

// Regenerate queues one materialisation job per active schedule covering the next horizon days.
// A schedule whose previous job is still in flight is counted as already queued.
func (s *RecurrenceService) Regenerate(ctx context.Context, companyID string, req dto.RegenerateRequest) (*dto.RegenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regeneration payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "regeneration queue unavailable")
	}
	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = s.cfg.DefaultHorizonDays
	}

	schedules, err := s.schedules.ListActive(ctx, companyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active schedules")
	}

	start := s.cfg.Now().UTC()
	end := start.AddDate(0, 0, horizon)
	resp := &dto.RegenerateResponse{ScheduleIDs: make([]string, 0, len(schedules))}
	for _, schedule := range schedules {
		job := jobs.Job{
			ID:   schedule.ID,
			Type: RegenerationJobType,
			Key:  schedule.ID,
			Payload: RegenerationPayload{
				CompanyID:  companyID,
				ScheduleID: schedule.ID,
				Start:      start,
				End:        end,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			if errors.Is(err, jobs.ErrAlreadyQueued) {
				resp.AlreadyQueued++
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue regeneration job")
		}
		resp.Queued++
		resp.ScheduleIDs = append(resp.ScheduleIDs, schedule.ID)
	}

	s.logger.Info("recurring schedule regeneration queued",
		zap.String("company_id", companyID),
		zap.Int("queued", resp.Queued),
		zap.Int("already_queued", resp.AlreadyQueued),
		zap.Int("horizon_days", horizon))
	return resp, nil
}

func (s *RecurrenceService) apply(schedule *models.RecurringSchedule, req dto.RecurringScheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring schedule payload")
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	interval := req.Interval
	if interval <= 0 {
		interval = 1
	}
	status := models.RecurringScheduleStatus(req.Status)
	if status == "" {
		status = models.RecurringStatusActive
	}

	schedule.JobID = trimmedOrNil(req.JobID)
	schedule.TechnicianID = trimmedOrNil(req.TechnicianID)
	schedule.Frequency = models.RecurrenceFrequency(req.Frequency)
	schedule.Interval = interval
	schedule.Weekdays = pq.Int64Array(req.Weekdays)
	schedule.MonthDay = req.MonthDay
	schedule.StartDate = req.StartDate
	schedule.EndDate = req.EndDate
	schedule.Timezone = strings.TrimSpace(req.Timezone)
	schedule.Status = status
	if err := schedule.EncodeConstraints(req.Constraints); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurrence constraints")
	}

	if _, err := s.engine.Compile(*schedule); err != nil {
		return recurrenceError(err)
	}
	return nil
}

func (s *RecurrenceService) refreshNext(schedule *models.RecurringSchedule) error {
	next, err := s.engine.NextOccurrence(*schedule, s.cfg.Now().UTC())
	if err != nil {
		return recurrenceError(err)
	}
	schedule.NextOccurrence = next
	return nil
}

func eventFromOccurrence(schedule models.RecurringSchedule, constraints models.RecurrenceConstraints, occ recurrence.Occurrence) (*models.ScheduleEvent, error) {
	title := constraints.Title
	if title == "" {
		title = fmt.Sprintf("Recurring %s visit", schedule.Frequency)
	}
	metadata, err := json.Marshal(map[string]interface{}{
		"occurrence_date": occ.Date.String(),
		"color":           constraints.Color,
	})
	if err != nil {
		return nil, err
	}
	scheduleID := schedule.ID
	return &models.ScheduleEvent{
		CompanyID:           schedule.CompanyID,
		JobID:               schedule.JobID,
		TechnicianID:        schedule.TechnicianID,
		RecurringScheduleID: &scheduleID,
		Title:               title,
		Description:         constraints.Description,
		StartTime:           occ.Start.UTC(),
		EndTime:             occ.End.UTC(),
		Status:              models.EventStatusScheduled,
		EventType:           constraints.EventType,
		Priority:            constraints.Priority,
		Location:            constraints.Location,
		Metadata:            types.JSONText(metadata),
	}, nil
}

// recurrenceError maps rule and timezone problems to validation errors.
func recurrenceError(err error) error {
	switch {
	case errors.Is(err, recurrence.ErrInvalidFrequency),
		errors.Is(err, recurrence.ErrInvalidInterval),
		errors.Is(err, recurrence.ErrMissingWeekdays),
		errors.Is(err, recurrence.ErrInvalidWeekday),
		errors.Is(err, recurrence.ErrMissingMonthDay),
		errors.Is(err, recurrence.ErrMissingCustomDates),
		errors.Is(err, recurrence.ErrInvalidTimezone),
		errors.Is(err, recurrence.ErrInvalidEndDate),
		errors.Is(err, recurrence.ErrInvalidWindow):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate recurrence")
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// RegenerationWorker runs regeneration jobs taken off the queue.
type RegenerationWorker struct {
	generator eventGenerator
	metrics   *MetricsService
	logger    *zap.Logger
}

type eventGenerator interface {
	Generate(ctx context.Context, companyID, scheduleID string, req dto.GenerateEventsRequest) (*dto.GenerateEventsResponse, error)
}

// NewRegenerationWorker constructs a worker.
func NewRegenerationWorker(generator eventGenerator, metrics *MetricsService, logger *zap.Logger) *RegenerationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegenerationWorker{generator: generator, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Schedules deleted or invalidated since queuing are dropped without retry.
func (w *RegenerationWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(RegenerationPayload)
	if !ok {
		w.logger.Sugar().Errorw("dropping regeneration job with unexpected payload", "job_id", job.ID, "type", job.Type)
		return nil
	}
	_, err := w.generator.Generate(ctx, payload.CompanyID, payload.ScheduleID, dto.GenerateEventsRequest{Start: payload.Start, End: payload.End})
	w.metrics.RecordRegenerationJob(err)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) || appErrors.Is(err, appErrors.ErrValidation) {
			w.logger.Sugar().Warnw("dropping regeneration job", "schedule_id", payload.ScheduleID, "error", err)
			return nil
		}
		return err
	}
	return nil
}
