package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

type RunService struct {
	runs      ports.RunRepository
	jobs      ports.JobRepository
	workflows ports.WorkflowRepository
	logs      ports.LogStore
	canceller ports.RunCanceller
}

func NewRunService(runs ports.RunRepository, jobs ports.JobRepository, workflows ports.WorkflowRepository, logs ports.LogStore, canceller ports.RunCanceller) *RunService {
	return &RunService{
		runs:      runs,
		jobs:      jobs,
		workflows: workflows,
		logs:      logs,
		canceller: canceller,
	}
}

// Get returns the run with its jobs attached.
func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListByRun(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Jobs = jobs
	return run, nil
}

func (s *RunService) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.Run, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.runs.List(ctx, filter)
}

// StepResults returns the recorded step outcomes of a job belonging to the run.
func (s *RunService) StepResults(ctx context.Context, runID, jobID uuid.UUID) ([]*domain.StepResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RunID != runID {
		return nil, domain.ErrJobNotFound
	}
	return s.jobs.ListStepResults(ctx, jobID)
}

// OpenStepLog streams the combined output of one step of a job.
func (s *RunService) OpenStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int) (io.ReadCloser, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RunID != runID {
		return nil, domain.ErrJobNotFound
	}
	return s.logs.OpenStepLog(ctx, runID, jobID, stepIndex)
}

// Cancel stops a queued or running run: queued jobs are cancelled in the
// store, running jobs are interrupted through the dispatcher.
func (s *RunService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(run.Status, domain.StatusCancelled) {
		return nil, domain.ErrRunFinished
	}

	cancelled, err := s.jobs.CancelQueuedByRun(ctx, id)
	if err != nil {
		return nil, err
	}

	interrupted := false
	if s.canceller != nil {
		interrupted = s.canceller.CancelRun(id)
	}

	log.WithFields(log.Fields{
		"run":         id,
		"cancelled":   cancelled,
		"interrupted": interrupted,
	}).Info("run cancel requested")

	// With no job still running, the run is terminal right away. Otherwise the
	// dispatcher finalises it when the interrupted jobs wind down.
	if !interrupted {
		if err := s.runs.UpdateStatus(ctx, id, domain.StatusCancelled); err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, id)
}

// Rerun creates a fresh run (and matrix jobs) from the same event as a
// finished run, against the workflow's current spec.
func (s *RunService) Rerun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	prev, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !prev.Status.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}

	wf, err := s.workflows.GetByID(ctx, prev.WorkflowID)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		ID:           uuid.New(),
		WorkflowID:   wf.ID,
		Event:        prev.Event,
		Branch:       prev.Branch,
		TargetBranch: prev.TargetBranch,
		CommitSHA:    prev.CommitSHA,
		Status:       domain.StatusQueued,
		CreatedAt:    time.Now(),
	}
	jobs := domain.NewJobs(run, wf.Name, wf.Spec.Matrix)

	if err := s.runs.Create(ctx, run, jobs); err != nil {
		return nil, err
	}
	run.Jobs = jobs
	return run, nil
}
