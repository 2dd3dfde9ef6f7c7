package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

type WorkflowService struct {
	workflows ports.WorkflowRepository
	runs      ports.RunRepository
}

func NewWorkflowService(workflows ports.WorkflowRepository, runs ports.RunRepository) *WorkflowService {
	return &WorkflowService{workflows: workflows, runs: runs}
}

// Register parses a YAML workflow definition and stores it. The workflow name
// comes from the spec and must be unique.
func (s *WorkflowService) Register(ctx context.Context, raw []byte) (*domain.Workflow, error) {
	spec, err := domain.ParseWorkflowSpec(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	wf := &domain.Workflow{
		ID:          uuid.New(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Name:        spec.Name,
		Slug:        domain.GenerateSlug(spec.Name),
		Description: spec.Description,
		RawSpec:     string(raw),
		Spec:        *spec,
	}

	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Apply registers the workflow, or updates it in place when one with the same
// name already exists. Used by the workflows-directory loader.
func (s *WorkflowService) Apply(ctx context.Context, raw []byte) (*domain.Workflow, error) {
	spec, err := domain.ParseWorkflowSpec(raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.workflows.GetByName(ctx, spec.Name)
	if errors.Is(err, domain.ErrWorkflowNotFound) {
		return s.Register(ctx, raw)
	}
	if err != nil {
		return nil, err
	}

	existing.Description = spec.Description
	existing.RawSpec = string(raw)
	existing.Spec = *spec
	existing.UpdatedAt = time.Now()

	if err := s.workflows.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *WorkflowService) Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	return s.workflows.GetByID(ctx, id)
}

func (s *WorkflowService) GetByName(ctx context.Context, name string) (*domain.Workflow, error) {
	return s.workflows.GetByName(ctx, name)
}

func (s *WorkflowService) List(ctx context.Context, filter ports.WorkflowListFilter) ([]*domain.Workflow, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.workflows.List(ctx, filter)
}

// Update replaces the workflow spec with a newly parsed one.
func (s *WorkflowService) Update(ctx context.Context, id uuid.UUID, raw []byte) (*domain.Workflow, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	spec, err := domain.ParseWorkflowSpec(raw)
	if err != nil {
		return nil, err
	}

	wf.Name = spec.Name
	wf.Slug = domain.GenerateSlug(spec.Name)
	wf.Description = spec.Description
	wf.RawSpec = string(raw)
	wf.Spec = *spec
	wf.UpdatedAt = time.Now()

	if err := s.workflows.Update(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Delete removes a workflow. Refused while the workflow still has queued or
// running runs; finished run history is kept and deleted with the workflow row
// by the schema's cascade.
func (s *WorkflowService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.workflows.GetByID(ctx, id); err != nil {
		return err
	}

	active, err := s.runs.CountActiveByWorkflow(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return domain.ErrWorkflowHasActiveRuns
	}

	return s.workflows.Delete(ctx, id)
}
