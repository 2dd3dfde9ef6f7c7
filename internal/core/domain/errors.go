package domain

import "errors"

// ============================================================================
// Workflow Errors
// ============================================================================

var (
	ErrWorkflowNotFound      = errors.New("workflow not found")
	ErrWorkflowNameConflict  = errors.New("workflow with this name already exists")
	ErrInvalidSpec           = errors.New("invalid workflow definition")
	ErrInvalidWorkflowName   = errors.New("workflow name is required")
	ErrNoSteps               = errors.New("workflow must define at least one step")
	ErrStepMissingRun        = errors.New("step is missing a run command")
	ErrNoTriggers            = errors.New("workflow must define at least one trigger")
	ErrEmptyMatrixAxis       = errors.New("matrix axis must have at least one value")
	ErrDuplicateAxisValue    = errors.New("matrix axis contains a duplicate value")
	ErrEmptyMatrix           = errors.New("matrix excludes eliminate every combination")
	ErrWorkflowHasActiveRuns = errors.New("workflow has queued or running runs")
)

// ============================================================================
// Run / Job Errors
// ============================================================================

var (
	ErrRunNotFound        = errors.New("run not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrStepResultNotFound = errors.New("step result not found")
	ErrRunFinished        = errors.New("run already finished")
	ErrNoQueuedJobs       = errors.New("no queued jobs")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStepTimeout        = errors.New("step timed out")
)

// ============================================================================
// Event Errors
// ============================================================================

var (
	ErrUnsupportedEvent = errors.New("unsupported event type")
	ErrMissingBranch    = errors.New("event branch is required")
	ErrBadSignature     = errors.New("webhook signature mismatch")
)

// ============================================================================
// Artifact Errors
// ============================================================================

var (
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrArtifactTooLarge    = errors.New("artifact exceeds the size limit")
	ErrInvalidArtifactName = errors.New("artifact name is required")
)
