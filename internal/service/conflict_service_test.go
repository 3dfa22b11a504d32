package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

func TestConflictServiceDetectsEveryOverlappingPair(t *testing.T) {
	events := &eventRangeStub{events: []models.ScheduleEvent{
		testEvent("evt-c", "tech-1", "2024-01-02T11:30:00Z", "2024-01-02T12:30:00Z"),
		testEvent("evt-a", "tech-1", "2024-01-02T09:00:00Z", "2024-01-02T11:00:00Z"),
		testEvent("evt-b", "tech-1", "2024-01-02T10:00:00Z", "2024-01-02T12:00:00Z"),
		testEvent("evt-d", "tech-2", "2024-01-02T10:00:00Z", "2024-01-02T12:00:00Z"),
	}}
	svc := NewConflictService(events, nil, nil, SchedulingConfig{})

	report, err := svc.DetectConflicts(context.Background(), "company-1", []string{"tech-2", "tech-1", "tech-1"}, at("2024-01-02T00:00:00Z"), at("2024-01-03T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-1", "tech-2"}, report.TechnicianIDs)
	assert.Equal(t, 4, report.TotalEvents)
	require.Len(t, report.Conflicts, 2)

	pairs := make([]string, 0, len(report.Conflicts))
	for _, conflict := range report.Conflicts {
		assert.Equal(t, models.ConflictTypeOverlap, conflict.Type)
		assert.Equal(t, "tech-1", conflict.TechnicianID)
		require.Len(t, conflict.Events, 2)
		pairs = append(pairs, conflict.Events[0].ID+"/"+conflict.Events[1].ID)
	}
	assert.Equal(t, []string{"evt-a/evt-b", "evt-b/evt-c"}, pairs)
}

func TestConflictServiceAdjacentEventsDoNotOverlap(t *testing.T) {
	events := &eventRangeStub{events: []models.ScheduleEvent{
		testEvent("evt-1", "tech-1", "2024-01-02T09:00:00Z", "2024-01-02T10:00:00Z"),
		testEvent("evt-2", "tech-1", "2024-01-02T10:00:00Z", "2024-01-02T11:00:00Z"),
	}}
	cancelled := testEvent("evt-3", "tech-1", "2024-01-02T09:30:00Z", "2024-01-02T10:30:00Z")
	cancelled.Status = models.EventStatusCancelled
	events.events = append(events.events, cancelled)
	svc := NewConflictService(events, nil, nil, SchedulingConfig{})

	report, err := svc.DetectConflicts(context.Background(), "company-1", []string{"tech-1"}, at("2024-01-02T00:00:00Z"), at("2024-01-03T00:00:00Z"))
	require.NoError(t, err)
	assert.False(t, report.HasConflicts())
	assert.NotNil(t, report.Conflicts)
}

func TestConflictServiceReportsOverloadedDays(t *testing.T) {
	var list []models.ScheduleEvent
	for hour := 8; hour < 15; hour++ {
		list = append(list, testEvent(fmt.Sprintf("evt-%d", hour), "tech-1",
			fmt.Sprintf("2024-01-02T%02d:00:00Z", hour), fmt.Sprintf("2024-01-02T%02d:30:00Z", hour)))
	}
	list = append(list, testEvent("evt-next", "tech-1", "2024-01-03T08:00:00Z", "2024-01-03T09:00:00Z"))
	metrics := NewMetricsService()
	svc := NewConflictService(&eventRangeStub{events: list}, metrics, nil, SchedulingConfig{})

	report, err := svc.DetectConflicts(context.Background(), "company-1", []string{"tech-1"}, at("2024-01-01T00:00:00Z"), at("2024-01-08T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	conflict := report.Conflicts[0]
	assert.Equal(t, models.ConflictTypeWorkload, conflict.Type)
	assert.Equal(t, "2024-01-02", conflict.Date)
	assert.Equal(t, 7, conflict.Count)
	assert.Equal(t, 6, conflict.Threshold)
}

func TestConflictServiceWorkloadThresholdIsConfigurable(t *testing.T) {
	list := []models.ScheduleEvent{
		testEvent("evt-1", "tech-1", "2024-01-02T08:00:00Z", "2024-01-02T09:00:00Z"),
		testEvent("evt-2", "tech-1", "2024-01-02T09:00:00Z", "2024-01-02T10:00:00Z"),
		testEvent("evt-3", "tech-1", "2024-01-02T10:00:00Z", "2024-01-02T11:00:00Z"),
	}
	svc := NewConflictService(&eventRangeStub{events: list}, nil, nil, SchedulingConfig{WorkloadThreshold: 2})

	report, err := svc.DetectConflicts(context.Background(), "company-1", []string{"tech-1"}, at("2024-01-02T00:00:00Z"), at("2024-01-03T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, 3, report.Conflicts[0].Count)
}

func TestConflictServiceDetectValidation(t *testing.T) {
	svc := NewConflictService(&eventRangeStub{}, nil, nil, SchedulingConfig{})

	_, err := svc.DetectConflicts(context.Background(), "company-1", []string{" ", ""}, at("2024-01-02T00:00:00Z"), at("2024-01-03T00:00:00Z"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.DetectConflicts(context.Background(), "company-1", []string{"tech-1"}, at("2024-01-03T00:00:00Z"), at("2024-01-02T00:00:00Z"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestConflictServiceIsSlotAvailable(t *testing.T) {
	events := &eventRangeStub{events: []models.ScheduleEvent{
		testEvent("evt-1", "tech-1", "2024-01-02T10:00:00Z", "2024-01-02T11:00:00Z"),
	}}
	svc := NewConflictService(events, nil, nil, SchedulingConfig{})
	ctx := context.Background()

	free, err := svc.IsSlotAvailable(ctx, "company-1", "tech-1", at("2024-01-02T10:30:00Z"), at("2024-01-02T11:30:00Z"), "")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.IsSlotAvailable(ctx, "company-1", "tech-1", at("2024-01-02T10:30:00Z"), at("2024-01-02T11:30:00Z"), "evt-1")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = svc.IsSlotAvailable(ctx, "company-1", "tech-1", at("2024-01-02T11:00:00Z"), at("2024-01-02T12:00:00Z"), "")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = svc.IsSlotAvailable(ctx, "company-1", "tech-2", at("2024-01-02T10:00:00Z"), at("2024-01-02T11:00:00Z"), "")
	require.NoError(t, err)
	assert.True(t, free)

	_, err = svc.IsSlotAvailable(ctx, "company-1", "", at("2024-01-02T10:00:00Z"), at("2024-01-02T11:00:00Z"), "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
