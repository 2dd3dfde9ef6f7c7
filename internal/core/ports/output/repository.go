package ports

import (
	"context"

	"github.com/google/uuid"

	"ci-runner-service/internal/core/domain"
)

type WorkflowListFilter struct {
	Search string
	SortBy string
	Order  string
	Limit  int
	Offset int
}

type RunListFilter struct {
	WorkflowID uuid.UUID
	Status     string
	Event      string
	Branch     string
	Limit      int
	Offset     int
}

type WorkflowRepository interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	GetByName(ctx context.Context, name string) (*domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter WorkflowListFilter) ([]*domain.Workflow, int, error)
}

type RunRepository interface {
	// Create persists the run and all its jobs atomically and assigns the
	// per-workflow run number.
	Create(ctx context.Context, run *domain.Run, jobs []*domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter RunListFilter) ([]*domain.Run, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	CountActiveByWorkflow(ctx context.Context, workflowID uuid.UUID) (int, error)
}

type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Job, error)
	// ClaimQueued atomically claims the oldest queued job and marks it running.
	// Returns domain.ErrNoQueuedJobs when the queue is empty.
	ClaimQueued(ctx context.Context) (*domain.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	SetCoverage(ctx context.Context, id uuid.UUID, pct float64) error
	// CancelQueuedByRun cancels every still-queued job of the run and reports
	// how many were cancelled.
	CancelQueuedByRun(ctx context.Context, runID uuid.UUID) (int, error)
	// RequeueRunning returns every running job to the queue. Called once on
	// dispatcher startup: a job still marked running at that point was
	// orphaned by an unclean shutdown and its claim is void.
	RequeueRunning(ctx context.Context) (int, error)
	SaveStepResult(ctx context.Context, result *domain.StepResult) error
	ListStepResults(ctx context.Context, jobID uuid.UUID) ([]*domain.StepResult, error)
}
