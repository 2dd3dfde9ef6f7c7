package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal status edge.
// Terminal states are frozen.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelled || to == StatusSkipped
	case StatusRunning:
		return to == StatusSuccess || to == StatusFailure || to == StatusCancelled
	default:
		return false
	}
}

// Transition validates and applies a status change, returning the new status.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// Run is one execution of a workflow for a single repository event.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	WorkflowID   uuid.UUID  `json:"workflow_id"`
	Number       int        `json:"number"`
	Event        EventType  `json:"event"`
	Branch       string     `json:"branch"`
	TargetBranch string     `json:"target_branch,omitempty"`
	CommitSHA    string     `json:"commit_sha"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`

	// Populated on read paths that join jobs in; not persisted on the run row.
	Jobs []*Job `json:"jobs,omitempty"`
}

// Job is one matrix combination of a run.
type Job struct {
	ID          uuid.UUID         `json:"id"`
	RunID       uuid.UUID         `json:"run_id"`
	Name        string            `json:"name"`
	Matrix      map[string]string `json:"matrix,omitempty"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	CoveragePct *float64          `json:"coverage_pct,omitempty"`
}

// StepResult records the outcome of one step of a job. Steps past a failed
// step are recorded with StatusSkipped and exit code -1.
type StepResult struct {
	JobID      uuid.UUID `json:"job_id"`
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	LogPath    string    `json:"log_path,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewJobs expands the workflow matrix into queued jobs for a run.
func NewJobs(run *Run, workflowName string, matrix MatrixSpec) []*Job {
	combos := ExpandMatrix(matrix)
	jobs := make([]*Job, 0, len(combos))
	for _, combo := range combos {
		name := workflowName
		if label := MatrixLabel(combo); label != "" {
			name = fmt.Sprintf("%s (%s)", workflowName, label)
		}
		jobs = append(jobs, &Job{
			ID:        uuid.New(),
			RunID:     run.ID,
			Name:      name,
			Matrix:    combo,
			Status:    StatusQueued,
			CreatedAt: run.CreatedAt,
		})
	}
	return jobs
}

// AggregateRunStatus derives the run status from its jobs.
//
// Rules, in order: all success -> success; otherwise if every job is terminal,
// failure beats cancelled beats success; otherwise running if anything has
// started (or finished while others wait), else queued.
func AggregateRunStatus(jobs []*Job) Status {
	if len(jobs) == 0 {
		return StatusQueued
	}

	allTerminal := true
	anyStarted := false
	anyFailure := false
	anyCancelled := false

	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			allTerminal = false
		} else {
			anyStarted = true
		}
		switch j.Status {
		case StatusFailure:
			anyFailure = true
		case StatusCancelled, StatusSkipped:
			anyCancelled = true
		case StatusRunning:
			anyStarted = true
		}
	}

	if allTerminal {
		switch {
		case anyFailure:
			return StatusFailure
		case anyCancelled:
			return StatusCancelled
		default:
			return StatusSuccess
		}
	}
	if anyStarted {
		return StatusRunning
	}
	return StatusQueued
}
