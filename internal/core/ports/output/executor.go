package ports

import (
	"context"

	"github.com/google/uuid"

	"ci-runner-service/internal/core/domain"
)

// ExecContext carries everything an executor needs to run one step of a job.
type ExecContext struct {
	RunID        uuid.UUID
	JobID        uuid.UUID
	WorkflowName string
	Matrix       map[string]string
	Env          map[string]string
	WorkDir      string
}

// StepOutcome is the result of running a step's command. A nonzero ExitCode is
// a step failure, not an executor error.
type StepOutcome struct {
	ExitCode int
	Output   []byte
}

// StepExecutor runs a single workflow step. Implementations return an error
// only for infrastructure failures (container runtime unreachable, API errors);
// command failures surface through StepOutcome.ExitCode. A deadline exceeded on
// ctx is reported as domain.ErrStepTimeout with any output captured so far.
type StepExecutor interface {
	Name() string
	RunStep(ctx context.Context, ec ExecContext, step domain.StepSpec) (*StepOutcome, error)
}

// RunCanceller interrupts the in-flight jobs of a run. Implemented by the
// dispatcher; used by the run service so cancellation reaches running steps.
type RunCanceller interface {
	CancelRun(runID uuid.UUID) bool
}
