package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

func TestWorkloadServiceBalance(t *testing.T) {
	events := &eventRangeStub{events: []models.ScheduleEvent{
		testEvent("evt-a", "tech-a", "2024-01-01T08:00:00Z", "2024-01-01T16:00:00Z"),
		testEvent("evt-b", "tech-b", "2024-01-01T08:00:00Z", "2024-01-01T10:00:00Z"),
		testEvent("evt-c", "tech-c", "2024-01-01T08:00:00Z", "2024-01-01T14:00:00Z"),
	}}
	svc := NewWorkloadService(&availabilityStub{}, events, nil, SchedulingConfig{})

	report, err := svc.Balance(context.Background(), "company-1", []string{"tech-a", "tech-b", "tech-c"}, at("2024-01-01T00:00:00Z"), at("2024-01-02T00:00:00Z"))
	require.NoError(t, err)

	require.Len(t, report.Snapshots, 3)
	assert.Equal(t, "tech-b", report.Snapshots[0].TechnicianID)
	assert.Equal(t, 25.0, report.Snapshots[0].Utilization)
	assert.Equal(t, 6.0, report.Snapshots[0].AvailableHours)
	assert.Equal(t, "tech-c", report.Snapshots[1].TechnicianID)
	assert.Equal(t, 75.0, report.Snapshots[1].Utilization)
	assert.Equal(t, "tech-a", report.Snapshots[2].TechnicianID)
	assert.Equal(t, 100.0, report.Snapshots[2].Utilization)
	assert.Equal(t, 8.0, report.Snapshots[2].MaxHours)
	assert.Equal(t, 0.0, report.Snapshots[2].AvailableHours)
	assert.Equal(t, 1, report.Snapshots[2].JobCount)
	assert.Equal(t, 66.67, report.AverageUtilization)

	require.Len(t, report.Recommendations, 2)
	transfer := report.Recommendations[0]
	assert.Equal(t, models.RecommendationRedistribute, transfer.Type)
	assert.Equal(t, "tech-a", transfer.FromTechnicianID)
	assert.Equal(t, "tech-b", transfer.ToTechnicianID)
	assert.Equal(t, 0.8, transfer.Hours)

	assign := report.Recommendations[1]
	assert.Equal(t, models.RecommendationAssignNewWork, assign.Type)
	assert.Equal(t, "tech-b", assign.ToTechnicianID)
}

func TestWorkloadServiceSnapshotClipsEventsToWindow(t *testing.T) {
	events := &eventRangeStub{events: []models.ScheduleEvent{
		testEvent("evt-1", "tech-1", "2024-01-01T22:00:00Z", "2024-01-02T02:00:00Z"),
	}}
	breakEvent := testEvent("evt-2", "tech-1", "2024-01-02T12:00:00Z", "2024-01-02T13:00:00Z")
	breakEvent.EventType = models.EventTypeBreak
	events.events = append(events.events, breakEvent)
	svc := NewWorkloadService(&availabilityStub{}, events, nil, SchedulingConfig{})

	snapshot, err := svc.Snapshot(context.Background(), "company-1", "tech-1", at("2024-01-02T00:00:00Z"), at("2024-01-03T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, snapshot.BookedHours)
	assert.Equal(t, 1, snapshot.JobCount)
	assert.Equal(t, 8.0, snapshot.MaxHours)
	assert.Equal(t, 37.5, snapshot.Utilization)
	assert.Equal(t, 5.0, snapshot.AvailableHours)
}

func TestWorkloadServiceZeroCapacity(t *testing.T) {
	events := &eventRangeStub{events: []models.ScheduleEvent{
		testEvent("evt-1", "tech-1", "2024-01-06T09:00:00Z", "2024-01-06T10:00:00Z"),
	}}
	svc := NewWorkloadService(&availabilityStub{}, events, nil, SchedulingConfig{})

	snapshot, err := svc.Snapshot(context.Background(), "company-1", "tech-1", at("2024-01-06T00:00:00Z"), at("2024-01-07T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, snapshot.MaxHours)
	assert.Equal(t, 0.0, snapshot.Utilization)
	assert.Equal(t, 0.0, snapshot.AvailableHours)
}

func TestWorkloadServiceBalanceRequiresTechnicians(t *testing.T) {
	svc := NewWorkloadService(&availabilityStub{}, &eventRangeStub{}, nil, SchedulingConfig{})

	_, err := svc.Balance(context.Background(), "company-1", nil, at("2024-01-01T00:00:00Z"), at("2024-01-02T00:00:00Z"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRecommendNeverExceedsDestinationAvailability(t *testing.T) {
	snapshots := []models.WorkloadSnapshot{
		{TechnicianID: "under", BookedHours: 1, MaxHours: 10, Utilization: 10, AvailableHours: 3},
		{TechnicianID: "mid", BookedHours: 8, MaxHours: 10, Utilization: 80, AvailableHours: 2},
		{TechnicianID: "over-1", BookedHours: 15, MaxHours: 10, Utilization: 150},
		{TechnicianID: "over-2", BookedHours: 20, MaxHours: 10, Utilization: 200},
	}

	recommendations := recommend(snapshots)
	require.Len(t, recommendations, 2)
	assert.Equal(t, models.RecommendationRedistribute, recommendations[0].Type)
	assert.Equal(t, "over-2", recommendations[0].FromTechnicianID)
	assert.Equal(t, "under", recommendations[0].ToTechnicianID)
	assert.Equal(t, 3.0, recommendations[0].Hours)
	assert.Equal(t, models.RecommendationAssignNewWork, recommendations[1].Type)
	assert.Equal(t, "under", recommendations[1].ToTechnicianID)

	for _, rec := range recommendations {
		assert.NotEqual(t, "mid", rec.ToTechnicianID)
	}
}

func TestRecommendPicksMostAvailableTarget(t *testing.T) {
	snapshots := []models.WorkloadSnapshot{
		{TechnicianID: "b", BookedHours: 2, MaxHours: 8, Utilization: 25, AvailableHours: 6},
		{TechnicianID: "a", BookedHours: 4, MaxHours: 8, Utilization: 50, AvailableHours: 4},
		{TechnicianID: "z", BookedHours: 10, MaxHours: 8, Utilization: 125},
	}

	recommendations := recommend(snapshots)
	require.Len(t, recommendations, 2)
	assert.Equal(t, "b", recommendations[0].ToTechnicianID)
	assert.Equal(t, 2.8, recommendations[0].Hours)
}

func TestRecommendWithoutOverloadOnlyAssignsNewWork(t *testing.T) {
	recommendations := recommend([]models.WorkloadSnapshot{
		{TechnicianID: "a", Utilization: 40, AvailableHours: 4},
		{TechnicianID: "b", Utilization: 60, AvailableHours: 2},
	})
	require.Len(t, recommendations, 1)
	assert.Equal(t, models.RecommendationAssignNewWork, recommendations[0].Type)
	assert.Equal(t, "a", recommendations[0].ToTechnicianID)
}
