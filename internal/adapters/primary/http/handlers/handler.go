package handlers

import (
	"ci-runner-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	workflowSvc *services.WorkflowService
	triggerSvc  *services.TriggerService
	runSvc      *services.RunService
	artifactSvc *services.ArtifactService

	webhookSecret string
}

func New(
	workflowSvc *services.WorkflowService,
	triggerSvc *services.TriggerService,
	runSvc *services.RunService,
	artifactSvc *services.ArtifactService,
	webhookSecret string,
) *Handler {
	return &Handler{
		workflowSvc:   workflowSvc,
		triggerSvc:    triggerSvc,
		runSvc:        runSvc,
		artifactSvc:   artifactSvc,
		webhookSecret: webhookSecret,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Workflows
	r.GET("/workflows", h.ListWorkflows)
	r.GET("/workflows/:id", h.GetWorkflow)
	r.POST("/workflows", h.RegisterWorkflow)
	r.PATCH("/workflows/:id", h.UpdateWorkflow)
	r.DELETE("/workflows/:id", h.DeleteWorkflow)

	// Webhook events
	r.POST("/events", h.HandleEvent)

	// Runs
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
	r.POST("/runs/:id/cancel", h.CancelRun)
	r.POST("/runs/:id/rerun", h.RerunRun)

	// Jobs (nested under run)
	r.GET("/runs/:id/jobs/:job_id/steps", h.ListStepResults)
	r.GET("/runs/:id/jobs/:job_id/logs/:idx", h.GetStepLog)

	// Artifacts
	r.POST("/runs/:id/jobs/:job_id/artifacts", h.UploadArtifact)
	r.GET("/runs/:id/jobs/:job_id/artifacts", h.ListArtifacts)
	r.GET("/runs/:id/jobs/:job_id/artifacts/:name", h.DownloadArtifact)
}
