package handlers

import (
	"net/http"
	"strconv"

	"ci-runner-service/internal/adapters/primary/http/dto"
	"ci-runner-service/internal/core/ports/output"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListWorkflows(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := ports.WorkflowListFilter{
		Search: c.Query("search"),
		SortBy: c.Query("sort_by"),
		Order:  c.Query("order"),
		Limit:  limit,
		Offset: offset,
	}

	workflows, total, err := h.workflowSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list workflows failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.WorkflowResponse, 0, len(workflows))
	for _, wf := range workflows {
		items = append(items, dto.ToWorkflowResponse(wf, false))
	}

	c.JSON(http.StatusOK, dto.ListWorkflowsResponse{
		Items:      items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	wf, err := h.workflowSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkflowResponse(wf, true))
}

func (h *Handler) RegisterWorkflow(c *gin.Context) {
	var req dto.RegisterWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := h.workflowSvc.Register(c.Request.Context(), []byte(req.Spec))
	if err != nil {
		log.WithError(err).Error("register workflow failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToWorkflowResponse(wf, true))
}

func (h *Handler) UpdateWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	var req dto.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := h.workflowSvc.Update(c.Request.Context(), id, []byte(req.Spec))
	if err != nil {
		log.WithError(err).Error("update workflow failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkflowResponse(wf, true))
}

func (h *Handler) DeleteWorkflow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	if err := h.workflowSvc.Delete(c.Request.Context(), id); err != nil {
		log.WithError(err).Error("delete workflow failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
