package dto

import (
	"time"

	"github.com/google/uuid"

	"ci-runner-service/internal/core/domain"
)

// Workflow definitions are submitted as raw YAML in a JSON envelope so the
// stored definition round-trips byte for byte.
type RegisterWorkflowRequest struct {
	Spec string `json:"spec" binding:"required"`
}

type UpdateWorkflowRequest struct {
	Spec string `json:"spec" binding:"required"`
}

type WorkflowResponse struct {
	ID          uuid.UUID           `json:"id"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Description string              `json:"description,omitempty"`
	Spec        domain.WorkflowSpec `json:"spec"`
	RawSpec     string              `json:"raw_spec,omitempty"`
}

type ListWorkflowsResponse struct {
	Items      []WorkflowResponse `json:"items"`
	Total      int                `json:"total"`
	PageSize   int                `json:"page_size"`
	NextOffset int                `json:"next_offset"`
}

func ToWorkflowResponse(wf *domain.Workflow, includeRaw bool) WorkflowResponse {
	resp := WorkflowResponse{
		ID:          wf.ID,
		CreatedAt:   wf.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   wf.UpdatedAt.Format(time.RFC3339),
		Name:        wf.Name,
		Slug:        wf.Slug,
		Description: wf.Description,
		Spec:        wf.Spec,
	}
	if includeRaw {
		resp.RawSpec = wf.RawSpec
	}
	return resp
}
