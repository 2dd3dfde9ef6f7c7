package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

type TriggerService struct {
	workflows ports.WorkflowRepository
	runs      ports.RunRepository
}

func NewTriggerService(workflows ports.WorkflowRepository, runs ports.RunRepository) *TriggerService {
	return &TriggerService{workflows: workflows, runs: runs}
}

// HandleEvent matches the event against every registered workflow's triggers
// and creates a run (with its full set of matrix jobs) per match. Each run is
// created atomically; a failure on one workflow does not roll back runs
// already created for others.
func (s *TriggerService) HandleEvent(ctx context.Context, ev domain.Event) ([]*domain.Run, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	// Trigger matching runs over the full workflow set; registration volume is
	// small enough that paging here would only hide matches.
	workflows, _, err := s.workflows.List(ctx, ports.WorkflowListFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}

	var created []*domain.Run
	for _, wf := range workflows {
		if !wf.Spec.Matches(ev) {
			continue
		}

		now := time.Now()
		run := &domain.Run{
			ID:           uuid.New(),
			WorkflowID:   wf.ID,
			Event:        ev.Type,
			Branch:       ev.Branch,
			TargetBranch: ev.TargetBranch,
			CommitSHA:    ev.CommitSHA,
			Status:       domain.StatusQueued,
			CreatedAt:    now,
		}
		jobs := domain.NewJobs(run, wf.Name, wf.Spec.Matrix)

		if err := s.runs.Create(ctx, run, jobs); err != nil {
			log.WithError(err).WithField("workflow", wf.Name).Error("create run failed")
			return created, err
		}
		run.Jobs = jobs

		log.WithFields(log.Fields{
			"workflow": wf.Name,
			"run":      run.ID,
			"event":    ev.Type,
			"branch":   ev.Branch,
			"jobs":     len(jobs),
		}).Info("run created")

		created = append(created, run)
	}

	return created, nil
}
