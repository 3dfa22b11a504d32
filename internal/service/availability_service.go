package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	"github.com/noah-isme/fieldservice-api/internal/recurrence"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type availabilityRuleRepository interface {
	ListEffective(ctx context.Context, companyID, technicianID string, start, end time.Time) ([]models.AvailabilityRule, error)
	FindByID(ctx context.Context, companyID, id string) (*models.AvailabilityRule, error)
	Upsert(ctx context.Context, rule *models.AvailabilityRule) error
	Delete(ctx context.Context, companyID, id string) error
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// AvailabilityConfig tunes availability resolution.
type AvailabilityConfig struct {
	Location *time.Location
	CacheTTL time.Duration
}

// AvailabilityService resolves the effective working windows of a technician and manages the rules behind them.
type AvailabilityService struct {
	rules     availabilityRuleRepository
	cache     availabilityCache
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AvailabilityConfig
}

// NewAvailabilityService constructs the service. A nil cache disables caching.
func NewAvailabilityService(rules availabilityRuleRepository, cache availabilityCache, validate *validator.Validate, logger *zap.Logger, cfg AvailabilityConfig) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &AvailabilityService{rules: rules, cache: cache, validator: validate, logger: logger, cfg: cfg}
}

// Resolve picks the effective rule for every calendar day in [start, end). Technician rules beat
// company-wide rules, which beat the built-in default. The boolean reports a cache hit.
func (s *AvailabilityService) Resolve(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.ResolvedAvailability, bool, error) {
	if technicianID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "technician_id is required")
	}
	if err := validateWindow(start, end); err != nil {
		return nil, false, err
	}

	key := availabilityCacheKey(companyID, technicianID, start, end)
	if s.cache != nil {
		var cached models.ResolvedAvailability
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("availability cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	rules, err := s.rules.ListEffective(ctx, companyID, technicianID, start, end)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}

	resolved := &models.ResolvedAvailability{
		CompanyID:    companyID,
		TechnicianID: technicianID,
		Timezone:     s.cfg.Location.String(),
		Start:        start,
		End:          end,
		Weekly:       make(map[int]models.DayAvailability, 7),
	}
	for _, day := range windowDays(start, end, s.cfg.Location) {
		availability := resolveDay(rules, technicianID, day)
		resolved.Days = append(resolved.Days, availability)
		if _, seen := resolved.Weekly[availability.DayOfWeek]; !seen {
			resolved.Weekly[availability.DayOfWeek] = availability
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resolved, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resolved, false, nil
}

// Location returns the timezone days are resolved in.
func (s *AvailabilityService) Location() *time.Location {
	return s.cfg.Location
}

// UpsertRule creates or replaces an availability rule and drops cached resolutions it affects.
func (s *AvailabilityService) UpsertRule(ctx context.Context, companyID string, req dto.UpsertAvailabilityRuleRequest) (*models.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability rule payload")
	}
	if err := validateRuleWindow(req); err != nil {
		return nil, err
	}

	rule := &models.AvailabilityRule{
		ID:             req.ID,
		CompanyID:      companyID,
		TechnicianID:   req.TechnicianID,
		DayOfWeek:      req.DayOfWeek,
		IsAvailable:    req.IsAvailable,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Timezone:       req.Timezone,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveTo:    req.EffectiveTo,
		MaxHoursPerDay: req.MaxHoursPerDay,
		MaxJobsPerDay:  req.MaxJobsPerDay,
	}
	if rule.Timezone == "" {
		rule.Timezone = s.cfg.Location.String()
	}

	var previousTechnician string
	if req.ID != "" {
		existing, err := s.rules.FindByID(ctx, companyID, req.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rule")
		}
		rule.CreatedAt = existing.CreatedAt
		if existing.TechnicianID != nil {
			previousTechnician = *existing.TechnicianID
		}
	}

	if err := s.rules.Upsert(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability rule")
	}

	s.invalidate(ctx, companyID, rule.TechnicianID)
	if previousTechnician != "" && (rule.TechnicianID == nil || *rule.TechnicianID != previousTechnician) {
		s.invalidate(ctx, companyID, &previousTechnician)
	}
	s.logger.Info("availability rule saved",
		zap.String("company_id", companyID),
		zap.String("rule_id", rule.ID),
		zap.Int("day_of_week", rule.DayOfWeek))
	return rule, nil
}

// DeleteRule removes a rule and drops cached resolutions it affected.
func (s *AvailabilityService) DeleteRule(ctx context.Context, companyID, id string) error {
	rule, err := s.rules.FindByID(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rule")
	}
	if err := s.rules.Delete(ctx, companyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability rule")
	}
	s.invalidate(ctx, companyID, rule.TechnicianID)
	return nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, companyID string, technicianID *string) {
	if s.cache == nil {
		return
	}
	tech := ""
	if technicianID != nil {
		tech = *technicianID
	}
	if err := s.cache.Invalidate(ctx, availabilityCachePattern(companyID, tech)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("company_id", companyID), zap.Error(err))
	}
}

func validateRuleWindow(req dto.UpsertAvailabilityRuleRequest) error {
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	start, err := models.ClockOn(ref, req.StartTime, time.UTC)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	end, err := models.ClockOn(ref, req.EndTime, time.UTC)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if req.IsAvailable && !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if req.EffectiveFrom != nil && req.EffectiveTo != nil && req.EffectiveTo.Before(*req.EffectiveFrom) {
		return appErrors.Clone(appErrors.ErrValidation, "effective_to must not precede effective_from")
	}
	if req.Timezone != "" {
		if _, err := recurrence.LoadLocation(req.Timezone); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid timezone")
		}
	}
	return nil
}

// resolveDay applies the precedence technician rule, company rule, default for one calendar day.
func resolveDay(rules []models.AvailabilityRule, technicianID string, day time.Time) models.DayAvailability {
	weekday := int(day.Weekday())
	var technicianRule, companyRule *models.AvailabilityRule
	for i := range rules {
		rule := &rules[i]
		if rule.DayOfWeek != weekday || !rule.Covers(day) {
			continue
		}
		switch {
		case rule.TechnicianID == nil:
			if moreSpecific(rule, companyRule) {
				companyRule = rule
			}
		case *rule.TechnicianID == technicianID:
			if moreSpecific(rule, technicianRule) {
				technicianRule = rule
			}
		}
	}

	switch {
	case technicianRule != nil:
		return dayFromRule(*technicianRule, day, models.AvailabilitySourceTechnician)
	case companyRule != nil:
		return dayFromRule(*companyRule, day, models.AvailabilitySourceCompany)
	default:
		return models.DefaultAvailability(day)
	}
}

// moreSpecific prefers the rule with the latest effective_from, then the most recently updated.
func moreSpecific(candidate, current *models.AvailabilityRule) bool {
	if current == nil {
		return true
	}
	switch {
	case candidate.EffectiveFrom != nil && current.EffectiveFrom == nil:
		return true
	case candidate.EffectiveFrom == nil && current.EffectiveFrom != nil:
		return false
	case candidate.EffectiveFrom != nil && !candidate.EffectiveFrom.Equal(*current.EffectiveFrom):
		return candidate.EffectiveFrom.After(*current.EffectiveFrom)
	}
	return candidate.UpdatedAt.After(current.UpdatedAt)
}

func dayFromRule(rule models.AvailabilityRule, day time.Time, source models.AvailabilitySource) models.DayAvailability {
	return models.DayAvailability{
		Date:           day.Format(models.DateLayout),
		DayOfWeek:      int(day.Weekday()),
		IsAvailable:    rule.IsAvailable,
		StartTime:      rule.StartTime,
		EndTime:        rule.EndTime,
		MaxHoursPerDay: rule.MaxHoursPerDay,
		MaxJobsPerDay:  rule.MaxJobsPerDay,
		Timezone:       rule.Timezone,
		Source:         source,
		RuleID:         rule.ID,
	}
}
