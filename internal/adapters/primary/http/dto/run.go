package dto

import (
	"time"

	"github.com/google/uuid"

	"ci-runner-service/internal/core/domain"
)

type EventRequest struct {
	Branch       string `json:"branch"`
	TargetBranch string `json:"target_branch"`
	CommitSHA    string `json:"commit_sha"`
	Sender       string `json:"sender"`
}

type EventResponse struct {
	Runs []RunResponse `json:"runs"`
}

type RunResponse struct {
	ID           uuid.UUID     `json:"id"`
	WorkflowID   uuid.UUID     `json:"workflow_id"`
	Number       int           `json:"number"`
	Event        string        `json:"event"`
	Branch       string        `json:"branch"`
	TargetBranch string        `json:"target_branch,omitempty"`
	CommitSHA    string        `json:"commit_sha"`
	Status       string        `json:"status"`
	CreatedAt    string        `json:"created_at"`
	StartedAt    *string       `json:"started_at,omitempty"`
	FinishedAt   *string       `json:"finished_at,omitempty"`
	Jobs         []JobResponse `json:"jobs,omitempty"`
}

type JobResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Matrix      map[string]string `json:"matrix,omitempty"`
	Status      string            `json:"status"`
	CreatedAt   string            `json:"created_at"`
	StartedAt   *string           `json:"started_at,omitempty"`
	FinishedAt  *string           `json:"finished_at,omitempty"`
	CoveragePct *float64          `json:"coverage_pct,omitempty"`
}

type StepResultResponse struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

type ListRunsResponse struct {
	Items      []RunResponse `json:"items"`
	Total      int           `json:"total"`
	PageSize   int           `json:"page_size"`
	NextOffset int           `json:"next_offset"`
}

func ToRunResponse(run *domain.Run) RunResponse {
	resp := RunResponse{
		ID:           run.ID,
		WorkflowID:   run.WorkflowID,
		Number:       run.Number,
		Event:        string(run.Event),
		Branch:       run.Branch,
		TargetBranch: run.TargetBranch,
		CommitSHA:    run.CommitSHA,
		Status:       string(run.Status),
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		StartedAt:    formatTimePtr(run.StartedAt),
		FinishedAt:   formatTimePtr(run.FinishedAt),
	}
	for _, job := range run.Jobs {
		resp.Jobs = append(resp.Jobs, ToJobResponse(job))
	}
	return resp
}

func ToJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Name:        job.Name,
		Matrix:      job.Matrix,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		StartedAt:   formatTimePtr(job.StartedAt),
		FinishedAt:  formatTimePtr(job.FinishedAt),
		CoveragePct: job.CoveragePct,
	}
}

func ToStepResultResponse(res *domain.StepResult) StepResultResponse {
	return StepResultResponse{
		Index:      res.Index,
		Name:       res.Name,
		Status:     string(res.Status),
		ExitCode:   res.ExitCode,
		StartedAt:  res.StartedAt.Format(time.RFC3339),
		FinishedAt: res.FinishedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
