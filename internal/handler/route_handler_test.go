package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/maps"
)

type routeServiceMock struct {
	requests []dto.OptimizeRouteRequest
	route    *models.OptimizedRoute
	err      error
}

func (m *routeServiceMock) Optimize(ctx context.Context, req dto.OptimizeRouteRequest) (*models.OptimizedRoute, error) {
	m.requests = append(m.requests, req)
	return m.route, m.err
}

func TestRouteHandlerOptimize(t *testing.T) {
	svc := &routeServiceMock{route: &models.OptimizedRoute{
		Mode:        maps.ModeDriving,
		Start:       "Depot",
		Ordered:     []string{"B", "A"},
		Unreachable: []string{"C"},
	}}
	c, w := newTestContext(http.MethodPost, "/routes/optimize", []byte(`{"locations":["A","B","C"],"start_location":"Depot","mode":"driving"}`))

	NewRouteHandler(svc).Optimize(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.requests, 1)
	assert.Equal(t, []string{"A", "B", "C"}, svc.requests[0].Locations)
	assert.Equal(t, "Depot", svc.requests[0].StartLocation)
	assert.JSONEq(t, `{"mode":"driving","start":"Depot","ordered":["B","A"],"unreachable":["C"]}`, string(decodeEnvelope(t, w).Data))
}

func TestRouteHandlerOptimizeRejectsMalformedBody(t *testing.T) {
	svc := &routeServiceMock{}
	c, w := newTestContext(http.MethodPost, "/routes/optimize", []byte(`{"locations":`))

	NewRouteHandler(svc).Optimize(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
	assert.Empty(t, svc.requests)
}

func TestRouteHandlerOptimizeMapsServiceErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"provider failure": {appErrors.Clone(appErrors.ErrProvider, "geocoding failed"), http.StatusBadGateway, appErrors.ErrProvider.Code},
		"validation":       {appErrors.Clone(appErrors.ErrValidation, "too many waypoints"), http.StatusBadRequest, appErrors.ErrValidation.Code},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, w := newTestContext(http.MethodPost, "/routes/optimize", []byte(`{"locations":["A","B"]}`))

			NewRouteHandler(&routeServiceMock{err: tc.err}).Optimize(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeEnvelope(t, w).Error.Code)
		})
	}
}

func TestRouteHandlerOptimizeRequiresCompany(t *testing.T) {
	svc := &routeServiceMock{}
	c, w := newTestContext(http.MethodPost, "/routes/optimize", []byte(`{"locations":["A"]}`))
	c.Keys = nil

	NewRouteHandler(svc).Optimize(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.requests)
}
