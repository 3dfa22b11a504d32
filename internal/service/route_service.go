package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/maps"
)

type distanceProvider interface {
	Geocode(ctx context.Context, address string) (*maps.Place, error)
	Distance(ctx context.Context, origin, destination string, mode maps.TravelMode) (*maps.Measurement, error)
	Directions(ctx context.Context, stops []string, mode maps.TravelMode) (*maps.Directions, error)
}

// RouteConfig bounds route sequencing.
type RouteConfig struct {
	MaxWaypoints int
}

// RouteService orders a technician's stops with a nearest-neighbour heuristic. It issues O(n²) distance
// calls and does not guarantee the shortest route, so input size is capped.
type RouteService struct {
	provider  distanceProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RouteConfig
}

// NewRouteService constructs a RouteService.
func NewRouteService(provider distanceProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RouteConfig) *RouteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWaypoints <= 0 {
		cfg.MaxWaypoints = 25
	}
	return &RouteService{provider: provider, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// Optimize sequences the locations starting from req.StartLocation, or the first location when none is
// given. Locations the provider cannot measure are appended in their original order. Failing to
// geocode the start or to build directions is fatal.
func (s *RouteService) Optimize(ctx context.Context, req dto.OptimizeRouteRequest) (*models.OptimizedRoute, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid route payload")
	}
	if len(req.Locations) > s.cfg.MaxWaypoints {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d locations can be sequenced", s.cfg.MaxWaypoints))
	}
	mode := maps.ParseMode(req.Mode)
	if !mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported travel mode")
	}

	pending := make([]string, 0, len(req.Locations))
	for _, location := range req.Locations {
		pending = append(pending, strings.TrimSpace(location))
	}
	start := strings.TrimSpace(req.StartLocation)
	explicitStart := start != ""
	route := &models.OptimizedRoute{Mode: mode}
	if !explicitStart {
		start = pending[0]
		pending = pending[1:]
		route.Ordered = append(route.Ordered, start)
	}
	route.Start = start

	_, err := s.provider.Geocode(ctx, start)
	s.metrics.RecordProviderCall("geocode", err)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, fmt.Sprintf("failed to geocode start location %q", start))
	}

	visited := make([]bool, len(pending))
	unreachable := make([]bool, len(pending))
	current := start
	for {
		best, bestSeconds := -1, 0
		for i, location := range pending {
			if visited[i] || unreachable[i] {
				continue
			}
			measurement, err := s.provider.Distance(ctx, current, location, mode)
			s.metrics.RecordProviderCall("distance", err)
			if err != nil {
				s.logger.Warn("location unreachable, appending unordered",
					zap.String("from", current),
					zap.String("to", location),
					zap.Error(err))
				unreachable[i] = true
				continue
			}
			if best == -1 || measurement.DurationSeconds < bestSeconds {
				best, bestSeconds = i, measurement.DurationSeconds
			}
		}
		if best == -1 {
			break
		}
		visited[best] = true
		current = pending[best]
		route.Ordered = append(route.Ordered, current)
	}
	for i, location := range pending {
		if unreachable[i] {
			route.Unreachable = append(route.Unreachable, location)
		}
	}

	stops := append([]string{}, route.Ordered...)
	if explicitStart {
		stops = append([]string{start}, stops...)
	}
	if len(stops) > 1 {
		directions, err := s.provider.Directions(ctx, stops, mode)
		s.metrics.RecordProviderCall("directions", err)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "failed to build route directions")
		}
		route.Directions = directions
	}
	route.Ordered = append(route.Ordered, route.Unreachable...)
	return route, nil
}
