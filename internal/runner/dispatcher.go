package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

// Dispatcher runs queued jobs on a fixed pool of workers. Each worker claims
// one job at a time from the store, executes its steps in order through the
// configured executor and records per-step results and logs. The first failing
// step fails the job and the remaining steps are recorded as skipped, except
// for steps marked continue-on-error.
type Dispatcher struct {
	workflows ports.WorkflowRepository
	runs      ports.RunRepository
	jobs      ports.JobRepository
	exec      ports.StepExecutor
	logs      ports.LogStore

	workers      int
	pollInterval time.Duration
	stepTimeout  time.Duration
	workDir      string

	mu      sync.Mutex
	cancels map[uuid.UUID]map[uuid.UUID]context.CancelFunc // runID -> jobID -> cancel
}

type Options struct {
	Workers      int
	PollInterval time.Duration
	StepTimeout  time.Duration
	WorkDir      string
}

func NewDispatcher(workflows ports.WorkflowRepository, runs ports.RunRepository, jobs ports.JobRepository, exec ports.StepExecutor, logs ports.LogStore, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Minute
	}
	return &Dispatcher{
		workflows:    workflows,
		runs:         runs,
		jobs:         jobs,
		exec:         exec,
		logs:         logs,
		workers:      opts.Workers,
		pollInterval: opts.PollInterval,
		stepTimeout:  opts.StepTimeout,
		workDir:      opts.WorkDir,
		cancels:      make(map[uuid.UUID]map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches the worker pool and blocks until ctx is cancelled and all
// workers have drained their current job. Jobs left in running state by an
// unclean shutdown are returned to the queue first; their claim died with the
// previous process.
func (d *Dispatcher) Start(ctx context.Context) {
	if n, err := d.jobs.RequeueRunning(ctx); err != nil {
		log.WithError(err).Error("requeue orphaned jobs failed")
	} else if n > 0 {
		log.WithField("jobs", n).Info("requeued orphaned running jobs")
	}

	log.WithFields(log.Fields{
		"workers":  d.workers,
		"executor": d.exec.Name(),
	}).Info("dispatcher started")

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workerLoop(ctx)
		}()
	}
	wg.Wait()
	log.Info("dispatcher stopped")
}

// CancelRun interrupts every running job of the run. Reports whether any job
// was actually interrupted.
func (d *Dispatcher) CancelRun(runID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	jobs, ok := d.cancels[runID]
	if !ok || len(jobs) == 0 {
		return false
	}
	for _, cancel := range jobs {
		cancel()
	}
	return true
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := d.jobs.ClaimQueued(ctx)
		if errors.Is(err, domain.ErrNoQueuedJobs) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.pollInterval):
			}
			continue
		}
		if err != nil {
			log.WithError(err).Error("claim job failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.pollInterval):
			}
			continue
		}

		d.runJob(ctx, job)
	}
}

// runJob executes a claimed (already running) job to a terminal status and
// refreshes the parent run's aggregate status. Persistence uses a context
// detached from ctx: the wind-down writes of an interrupted job must land even
// while the pool is shutting down.
func (d *Dispatcher) runJob(ctx context.Context, job *domain.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	d.registerCancel(job.RunID, job.ID, cancel)
	defer d.unregisterCancel(job.RunID, job.ID)
	defer cancel()

	persist := context.WithoutCancel(ctx)
	logger := log.WithFields(log.Fields{"run": job.RunID, "job": job.ID, "name": job.Name})

	run, err := d.runs.GetByID(persist, job.RunID)
	if err != nil {
		logger.WithError(err).Error("load run failed")
		d.finishJob(persist, job, domain.StatusFailure)
		return
	}
	wf, err := d.workflows.GetByID(persist, run.WorkflowID)
	if err != nil {
		logger.WithError(err).Error("load workflow failed")
		d.finishJob(persist, job, domain.StatusFailure)
		return
	}

	if domain.CanTransition(run.Status, domain.StatusRunning) {
		if err := d.runs.UpdateStatus(persist, run.ID, domain.StatusRunning); err != nil {
			logger.WithError(err).Warn("mark run running failed")
		}
	}

	ec := ports.ExecContext{
		RunID:        run.ID,
		JobID:        job.ID,
		WorkflowName: wf.Name,
		Matrix:       job.Matrix,
		Env:          wf.Spec.Env,
		WorkDir:      d.workDir,
	}

	status := domain.StatusSuccess
	failed := false
	for i, step := range wf.Spec.Steps {
		if failed {
			d.recordStep(persist, job, i, step.Name, domain.StatusSkipped, -1, "", time.Now(), time.Now())
			continue
		}

		select {
		case <-jobCtx.Done():
			status = domain.StatusCancelled
			failed = true
			d.recordStep(persist, job, i, step.Name, domain.StatusCancelled, -1, "", time.Now(), time.Now())
			continue
		default:
		}

		switch d.runStep(jobCtx, ec, job, i, step) {
		case domain.StatusFailure:
			if !step.ContinueOnError {
				status = domain.StatusFailure
				failed = true
			}
		case domain.StatusCancelled:
			status = domain.StatusCancelled
			failed = true
		}
	}

	d.finishJob(persist, job, status)
	logger.WithField("status", status).Info("job finished")
}

// runStep executes one step, persists its log and result, and returns the
// step status.
func (d *Dispatcher) runStep(ctx context.Context, ec ports.ExecContext, job *domain.Job, index int, step domain.StepSpec) domain.Status {
	stepCtx, cancel := context.WithTimeout(ctx, step.StepTimeout(d.stepTimeout))
	defer cancel()

	started := time.Now()
	outcome, err := d.exec.RunStep(stepCtx, ec, step)
	finished := time.Now()

	var output []byte
	exitCode := -1
	status := domain.StatusSuccess

	if outcome != nil {
		output = outcome.Output
		exitCode = outcome.ExitCode
	}

	switch {
	case err == nil && exitCode == 0:
		status = domain.StatusSuccess
	case errors.Is(err, domain.ErrStepTimeout):
		status = domain.StatusFailure
		output = append(output, []byte("\n"+domain.ErrStepTimeout.Error()+"\n")...)
	case ctx.Err() != nil:
		status = domain.StatusCancelled
	case err != nil:
		status = domain.StatusFailure
		output = append(output, []byte("\nexecutor error: "+err.Error()+"\n")...)
	default:
		status = domain.StatusFailure
	}

	// The step's own context may already be cancelled; its log and result are
	// still persisted.
	persist := context.WithoutCancel(ctx)

	logPath := ""
	if len(output) > 0 || status != domain.StatusCancelled {
		path, lerr := d.logs.SaveStepLog(persist, ec.RunID, job.ID, index, output)
		if lerr != nil {
			log.WithError(lerr).WithField("job", job.ID).Warn("save step log failed")
		} else {
			logPath = path
		}
	}

	d.recordStep(persist, job, index, step.Name, status, exitCode, logPath, started, finished)
	return status
}

func (d *Dispatcher) recordStep(ctx context.Context, job *domain.Job, index int, name string, status domain.Status, exitCode int, logPath string, started, finished time.Time) {
	result := &domain.StepResult{
		JobID:      job.ID,
		Index:      index,
		Name:       name,
		Status:     status,
		ExitCode:   exitCode,
		LogPath:    logPath,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err := d.jobs.SaveStepResult(ctx, result); err != nil {
		log.WithError(err).WithFields(log.Fields{"job": job.ID, "step": index}).Error("save step result failed")
	}
}

// finishJob moves the job to a terminal status and recomputes the run status
// from all sibling jobs.
func (d *Dispatcher) finishJob(ctx context.Context, job *domain.Job, status domain.Status) {
	if err := d.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		log.WithError(err).WithField("job", job.ID).Error("update job status failed")
		return
	}

	jobs, err := d.jobs.ListByRun(ctx, job.RunID)
	if err != nil {
		log.WithError(err).WithField("run", job.RunID).Error("list run jobs failed")
		return
	}

	agg := domain.AggregateRunStatus(jobs)
	if err := d.runs.UpdateStatus(ctx, job.RunID, agg); err != nil {
		log.WithError(err).WithField("run", job.RunID).Error("update run status failed")
	}
}

func (d *Dispatcher) registerCancel(runID, jobID uuid.UUID, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancels[runID] == nil {
		d.cancels[runID] = make(map[uuid.UUID]context.CancelFunc)
	}
	d.cancels[runID][jobID] = cancel
}

func (d *Dispatcher) unregisterCancel(runID, jobID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cancels[runID], jobID)
	if len(d.cancels[runID]) == 0 {
		delete(d.cancels, runID)
	}
}
