package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
	"ci-runner-service/internal/testutil"
)

func TestParseCoverage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
		ok     bool
	}{
		{"plain", "coverage: 87.5% of statements", 87.5, true},
		{"integer", "coverage: 100% of statements", 100, true},
		{"in test output", "ok  \tci-runner-service/internal/core/domain\t0.01s\tcoverage: 92.3% of statements\n", 92.3, true},
		{"no coverage line", "ok  all tests passed", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCoverage(tt.output)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArtifactService_Save_RecordsCoverage(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	jobs := new(testutil.MockJobRepo)
	svc := NewArtifactService(store, jobs)

	runID, jobID := uuid.New(), uuid.New()
	content := "mode: set\ncoverage: 81.2% of statements\n"

	jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID, RunID: runID}, nil)
	store.On("Save", mock.Anything, runID, jobID, "coverage.out", mock.Anything).
		Return(&ports.ArtifactInfo{Name: "coverage.out", Size: int64(len(content))}, nil)
	jobs.On("SetCoverage", mock.Anything, jobID, 81.2).Return(nil)

	info, err := svc.Save(context.Background(), runID, jobID, "coverage.out", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "coverage.out", info.Name)
	jobs.AssertExpectations(t)
}

func TestArtifactService_Save_NonCoverageSkipsScan(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	jobs := new(testutil.MockJobRepo)
	svc := NewArtifactService(store, jobs)

	runID, jobID := uuid.New(), uuid.New()

	jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID, RunID: runID}, nil)
	store.On("Save", mock.Anything, runID, jobID, "report.xml", mock.Anything).
		Return(&ports.ArtifactInfo{Name: "report.xml"}, nil)

	_, err := svc.Save(context.Background(), runID, jobID, "report.xml", strings.NewReader("<xml/>"))
	require.NoError(t, err)
	jobs.AssertNotCalled(t, "SetCoverage", mock.Anything, mock.Anything, mock.Anything)
}

func TestArtifactService_Save_CoverageWithoutSummary(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	jobs := new(testutil.MockJobRepo)
	svc := NewArtifactService(store, jobs)

	runID, jobID := uuid.New(), uuid.New()

	jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID, RunID: runID}, nil)
	store.On("Save", mock.Anything, runID, jobID, "coverage.out", mock.Anything).
		Return(&ports.ArtifactInfo{Name: "coverage.out"}, nil)

	_, err := svc.Save(context.Background(), runID, jobID, "coverage.out", strings.NewReader("mode: set\n"))
	require.NoError(t, err)
	jobs.AssertNotCalled(t, "SetCoverage", mock.Anything, mock.Anything, mock.Anything)
}

func TestArtifactService_Save_EmptyName(t *testing.T) {
	svc := NewArtifactService(new(testutil.MockArtifactStore), new(testutil.MockJobRepo))

	_, err := svc.Save(context.Background(), uuid.New(), uuid.New(), "", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidArtifactName)
}

func TestArtifactService_Save_JobRunMismatch(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	jobs := new(testutil.MockJobRepo)
	svc := NewArtifactService(store, jobs)

	jobID := uuid.New()
	jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID, RunID: uuid.New()}, nil)

	_, err := svc.Save(context.Background(), uuid.New(), jobID, "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestArtifactService_List(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	jobs := new(testutil.MockJobRepo)
	svc := NewArtifactService(store, jobs)

	runID, jobID := uuid.New(), uuid.New()
	jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID, RunID: runID}, nil)
	store.On("List", mock.Anything, runID, jobID).Return([]ports.ArtifactInfo{{Name: "coverage.out"}}, nil)

	infos, err := svc.List(context.Background(), runID, jobID)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}
