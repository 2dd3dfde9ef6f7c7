package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"ci-runner-service/internal/core/domain"
)

// ============================================================================
// ToRunResponse Tests
// ============================================================================

func TestToRunResponse_QueuedRun(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	run := &domain.Run{
		ID:         uuid.New(),
		WorkflowID: uuid.New(),
		Number:     7,
		Event:      domain.EventPush,
		Branch:     "main",
		CommitSHA:  "abc1234",
		Status:     domain.StatusQueued,
		CreatedAt:  created,
	}

	resp := ToRunResponse(run)

	assert.Equal(t, run.ID, resp.ID)
	assert.Equal(t, run.WorkflowID, resp.WorkflowID)
	assert.Equal(t, 7, resp.Number)
	assert.Equal(t, "push", resp.Event)
	assert.Equal(t, "main", resp.Branch)
	assert.Equal(t, "", resp.TargetBranch)
	assert.Equal(t, "abc1234", resp.CommitSHA)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "2026-03-14T09:30:00Z", resp.CreatedAt)
	assert.Nil(t, resp.StartedAt)
	assert.Nil(t, resp.FinishedAt)
	assert.Empty(t, resp.Jobs)
}

func TestToRunResponse_FinishedRunWithJobs(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC)
	finished := time.Date(2026, 3, 14, 9, 45, 0, 0, time.UTC)
	run := &domain.Run{
		ID:           uuid.New(),
		WorkflowID:   uuid.New(),
		Event:        domain.EventPullRequest,
		Branch:       "feature/matrix",
		TargetBranch: "main",
		Status:       domain.StatusSuccess,
		CreatedAt:    started,
		StartedAt:    &started,
		FinishedAt:   &finished,
		Jobs: []*domain.Job{
			{ID: uuid.New(), Name: "build (go-version:1.24, os:ubuntu-latest)", Status: domain.StatusSuccess, CreatedAt: started},
			{ID: uuid.New(), Name: "build (go-version:1.24, os:macos-latest)", Status: domain.StatusSuccess, CreatedAt: started},
		},
	}

	resp := ToRunResponse(run)

	assert.Equal(t, "pull_request", resp.Event)
	assert.Equal(t, "main", resp.TargetBranch)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "2026-03-14T09:31:00Z", *resp.StartedAt)
	assert.Equal(t, "2026-03-14T09:45:00Z", *resp.FinishedAt)
	assert.Len(t, resp.Jobs, 2)
	assert.Equal(t, "build (go-version:1.24, os:ubuntu-latest)", resp.Jobs[0].Name)
}

// ============================================================================
// ToJobResponse Tests
// ============================================================================

func TestToJobResponse_WithCoverage(t *testing.T) {
	coverage := 87.5
	finished := time.Date(2026, 3, 14, 9, 40, 0, 0, time.UTC)
	job := &domain.Job{
		ID:          uuid.New(),
		Name:        "build (go-version:1.23, os:windows-latest)",
		Matrix:      map[string]string{"go-version": "1.23", "os": "windows-latest"},
		Status:      domain.StatusSuccess,
		CreatedAt:   finished,
		FinishedAt:  &finished,
		CoveragePct: &coverage,
	}

	resp := ToJobResponse(job)

	assert.Equal(t, job.ID, resp.ID)
	assert.Equal(t, "1.23", resp.Matrix["go-version"])
	assert.Equal(t, "windows-latest", resp.Matrix["os"])
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 87.5, *resp.CoveragePct)
}

func TestToJobResponse_NoMatrixNoCoverage(t *testing.T) {
	job := &domain.Job{
		ID:        uuid.New(),
		Name:      "build",
		Status:    domain.StatusQueued,
		CreatedAt: time.Now(),
	}

	resp := ToJobResponse(job)

	assert.Nil(t, resp.Matrix)
	assert.Nil(t, resp.CoveragePct)
	assert.Nil(t, resp.StartedAt)
}

// ============================================================================
// ToStepResultResponse Tests
// ============================================================================

func TestToStepResultResponse(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 32, 0, 0, time.UTC)
	res := &domain.StepResult{
		Index:      2,
		Name:       "go test",
		Status:     domain.StatusFailure,
		ExitCode:   1,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
	}

	resp := ToStepResultResponse(res)

	assert.Equal(t, 2, resp.Index)
	assert.Equal(t, "go test", resp.Name)
	assert.Equal(t, "failure", resp.Status)
	assert.Equal(t, 1, resp.ExitCode)
	assert.Equal(t, "2026-03-14T09:32:00Z", resp.StartedAt)
	assert.Equal(t, "2026-03-14T09:35:00Z", resp.FinishedAt)
}

// ============================================================================
// ToWorkflowResponse Tests
// ============================================================================

func TestToWorkflowResponse_IncludeRaw(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	wf := &domain.Workflow{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Name:      "CI",
		Slug:      "ci",
		RawSpec:   "name: CI\n",
		Spec:      domain.WorkflowSpec{Name: "CI"},
	}

	resp := ToWorkflowResponse(wf, true)

	assert.Equal(t, wf.ID, resp.ID)
	assert.Equal(t, "CI", resp.Name)
	assert.Equal(t, "ci", resp.Slug)
	assert.Equal(t, "name: CI\n", resp.RawSpec)
	assert.Equal(t, "2026-03-14T09:00:00Z", resp.CreatedAt)
}

func TestToWorkflowResponse_ExcludeRaw(t *testing.T) {
	wf := &domain.Workflow{
		ID:      uuid.New(),
		Name:    "CI",
		RawSpec: "name: CI\n",
	}

	resp := ToWorkflowResponse(wf, false)

	assert.Equal(t, "", resp.RawSpec)
}
