package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

func at(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(v string) *string { return &v }

func testEvent(id, technicianID, start, end string) models.ScheduleEvent {
	return models.ScheduleEvent{
		ID:           id,
		CompanyID:    "company-1",
		TechnicianID: strPtr(technicianID),
		Title:        "Visit " + id,
		StartTime:    at(start),
		EndTime:      at(end),
		Status:       models.EventStatusScheduled,
		EventType:    models.EventTypeJob,
		Priority:     models.PriorityNormal,
	}
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

// availabilityStub resolves every technician to the built-in default unless an override is set.
type availabilityStub struct {
	overrides map[string]*models.ResolvedAvailability
	err       error
	calls     int
}

func (s *availabilityStub) Resolve(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.ResolvedAvailability, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	if resolved, ok := s.overrides[technicianID]; ok {
		return resolved, false, nil
	}
	return &models.ResolvedAvailability{CompanyID: companyID, TechnicianID: technicianID, Start: start, End: end}, false, nil
}

// eventRangeStub answers ListInRange the way the repository does.
type eventRangeStub struct {
	events  []models.ScheduleEvent
	err     error
	filters []models.EventFilter
}

func (s *eventRangeStub) ListInRange(ctx context.Context, filter models.EventFilter) ([]models.ScheduleEvent, error) {
	s.filters = append(s.filters, filter)
	if s.err != nil {
		return nil, s.err
	}
	wanted := make(map[string]bool, len(filter.TechnicianIDs))
	for _, id := range filter.TechnicianIDs {
		wanted[id] = true
	}
	var out []models.ScheduleEvent
	for _, event := range s.events {
		if event.CompanyID != filter.CompanyID {
			continue
		}
		if len(wanted) > 0 && !wanted[event.Technician()] {
			continue
		}
		if !filter.IncludeCancelled && event.Status == models.EventStatusCancelled {
			continue
		}
		if !event.Overlaps(filter.Start, filter.End) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// memoryCache is a JSON round-tripping availabilityCache.
type memoryCache struct {
	mu          sync.Mutex
	items       map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	return nil
}
