package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fieldservice-api/internal/dto"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
)

type technicianDirectoryStub struct {
	technicians []models.Technician
	filters     []models.TechnicianFilter
}

func (s *technicianDirectoryStub) List(ctx context.Context, filter models.TechnicianFilter) ([]models.Technician, error) {
	s.filters = append(s.filters, filter)
	wanted := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []models.Technician
	for _, technician := range s.technicians {
		if len(wanted) > 0 && !wanted[technician.ID] {
			continue
		}
		out = append(out, technician)
	}
	return out, nil
}

func (s *technicianDirectoryStub) FindByID(ctx context.Context, companyID, id string) (*models.Technician, error) {
	for _, technician := range s.technicians {
		if technician.ID == id && technician.CompanyID == companyID {
			t := technician
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

type jobReaderStub struct {
	jobs map[string]models.Job
}

func (s jobReaderStub) FindByID(ctx context.Context, companyID, id string) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &job, nil
}

type slotCheckerStub struct {
	busy map[string]bool
}

func (s slotCheckerStub) IsSlotAvailable(ctx context.Context, companyID, technicianID string, start, end time.Time, ignoreEventID string) (bool, error) {
	return !s.busy[technicianID], nil
}

type snapshotterStub struct {
	snapshots map[string]models.WorkloadSnapshot
	windows   []time.Time
}

func (s *snapshotterStub) Snapshot(ctx context.Context, companyID, technicianID string, start, end time.Time) (*models.WorkloadSnapshot, error) {
	s.windows = append(s.windows, start, end)
	snapshot := s.snapshots[technicianID]
	snapshot.TechnicianID = technicianID
	return &snapshot, nil
}

func assignmentTechnicians() []models.Technician {
	return []models.Technician{
		{ID: "tech-3", CompanyID: "company-1", Role: models.TechnicianRoleTechnician, Active: true},
		{ID: "tech-1", CompanyID: "company-1", Role: models.TechnicianRoleTechnician, Active: true},
		{ID: "tech-2", CompanyID: "company-1", Role: models.TechnicianRoleTechnician, Active: true},
		{ID: "disp-1", CompanyID: "company-1", Role: models.TechnicianRoleDispatcher, Active: true},
	}
}

func newAssignmentFixture(busy map[string]bool, snapshots map[string]models.WorkloadSnapshot) (*AssignmentService, *technicianDirectoryStub, *snapshotterStub) {
	directory := &technicianDirectoryStub{technicians: assignmentTechnicians()}
	snapshotter := &snapshotterStub{snapshots: snapshots}
	svc := NewAssignmentService(
		directory,
		jobReaderStub{jobs: map[string]models.Job{"job-1": {ID: "job-1", CompanyID: "company-1"}}},
		slotCheckerStub{busy: busy},
		snapshotter,
		nil,
		nil,
		nil,
		SchedulingConfig{},
	)
	return svc, directory, snapshotter
}

func TestAssignmentServiceAutoAssignPicksHighestScore(t *testing.T) {
	svc, directory, snapshotter := newAssignmentFixture(
		map[string]bool{"tech-1": true},
		map[string]models.WorkloadSnapshot{
			"tech-1": {Utilization: 0, AvailableHours: 8},
			"tech-2": {Utilization: 50, AvailableHours: 4},
			"tech-3": {Utilization: 20, AvailableHours: 2},
		},
	)

	result, err := svc.AutoAssign(context.Background(), "company-1", "job-1", dto.AutoAssignRequest{
		Start: at("2024-01-02T10:00:00Z"),
		End:   at("2024-01-02T11:00:00Z"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.TechnicianID)
	assert.Equal(t, "tech-3", *result.TechnicianID)

	require.Len(t, result.Candidates, 3)
	assert.Equal(t, "tech-3", result.Candidates[0].TechnicianID)
	assert.Equal(t, 100.0, result.Candidates[0].Score)
	assert.Equal(t, "tech-2", result.Candidates[1].TechnicianID)
	assert.Equal(t, 90.0, result.Candidates[1].Score)
	assert.Equal(t, "tech-1", result.Candidates[2].TechnicianID)
	assert.False(t, result.Candidates[2].Available)

	require.Len(t, directory.filters, 1)
	assert.Equal(t, models.TechnicianRoleTechnician, directory.filters[0].Role)
	require.NotNil(t, directory.filters[0].Active)
	assert.True(t, *directory.filters[0].Active)

	require.NotEmpty(t, snapshotter.windows)
	assert.Equal(t, at("2024-01-02T00:00:00Z"), snapshotter.windows[0])
	assert.Equal(t, at("2024-01-03T00:00:00Z"), snapshotter.windows[1])
}

func TestAssignmentServiceAutoAssignTieGoesToLowestID(t *testing.T) {
	same := models.WorkloadSnapshot{Utilization: 40, AvailableHours: 5}
	svc, _, _ := newAssignmentFixture(nil, map[string]models.WorkloadSnapshot{
		"tech-1": same, "tech-2": same, "tech-3": same,
	})

	result, err := svc.AutoAssign(context.Background(), "company-1", "job-1", dto.AutoAssignRequest{
		Start: at("2024-01-02T10:00:00Z"),
		End:   at("2024-01-02T11:00:00Z"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.TechnicianID)
	assert.Equal(t, "tech-1", *result.TechnicianID)
}

func TestAssignmentServiceAutoAssignNeverPicksBusyTechnician(t *testing.T) {
	svc, _, _ := newAssignmentFixture(
		map[string]bool{"tech-1": true, "tech-2": true, "tech-3": true},
		map[string]models.WorkloadSnapshot{"tech-1": {AvailableHours: 8}},
	)

	result, err := svc.AutoAssign(context.Background(), "company-1", "job-1", dto.AutoAssignRequest{
		Start: at("2024-01-02T10:00:00Z"),
		End:   at("2024-01-02T11:00:00Z"),
	})
	require.NoError(t, err)
	assert.Nil(t, result.TechnicianID)
	for _, candidate := range result.Candidates {
		assert.False(t, candidate.Available)
	}
}

func TestAssignmentServiceAutoAssignRespectsPreferredTechnicians(t *testing.T) {
	svc, directory, _ := newAssignmentFixture(nil, map[string]models.WorkloadSnapshot{
		"tech-1": {Utilization: 0, AvailableHours: 8},
		"tech-2": {Utilization: 90, AvailableHours: 1},
	})

	result, err := svc.AutoAssign(context.Background(), "company-1", "job-1", dto.AutoAssignRequest{
		Start:                  at("2024-01-02T10:00:00Z"),
		End:                    at("2024-01-02T11:00:00Z"),
		PreferredTechnicianIDs: []string{"tech-2"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.TechnicianID)
	assert.Equal(t, "tech-2", *result.TechnicianID)
	assert.Equal(t, []string{"tech-2"}, directory.filters[0].IDs)
}

func TestAssignmentServiceAutoAssignUnknownJob(t *testing.T) {
	svc, _, _ := newAssignmentFixture(nil, nil)

	_, err := svc.AutoAssign(context.Background(), "company-1", "job-404", dto.AutoAssignRequest{
		Start: at("2024-01-02T10:00:00Z"),
		End:   at("2024-01-02T11:00:00Z"),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAssignmentServiceAutoAssignValidatesWindow(t *testing.T) {
	svc, _, _ := newAssignmentFixture(nil, nil)

	_, err := svc.AutoAssign(context.Background(), "company-1", "job-1", dto.AutoAssignRequest{
		Start: at("2024-01-02T11:00:00Z"),
		End:   at("2024-01-02T10:00:00Z"),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
