package handlers

import (
	"io"
	"net/http"
	"strconv"

	"ci-runner-service/internal/adapters/primary/http/dto"
	"ci-runner-service/internal/core/ports/output"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := ports.RunListFilter{
		Status: c.Query("status"),
		Event:  c.Query("event"),
		Branch: c.Query("branch"),
		Limit:  limit,
		Offset: offset,
	}
	if wfID := c.Query("workflow_id"); wfID != "" {
		id, err := uuid.Parse(wfID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow_id"})
			return
		}
		filter.WorkflowID = id
	}

	runs, total, err := h.runSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list runs failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, dto.ToRunResponse(run))
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{
		Items:      items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRunResponse(run))
}

func (h *Handler) CancelRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Error("cancel run failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRunResponse(run))
}

func (h *Handler) RerunRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runSvc.Rerun(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Error("rerun failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToRunResponse(run))
}

func (h *Handler) ListStepResults(c *gin.Context) {
	runID, jobID, ok := runJobIDs(c)
	if !ok {
		return
	}

	results, err := h.runSvc.StepResults(c.Request.Context(), runID, jobID)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	items := make([]dto.StepResultResponse, 0, len(results))
	for _, res := range results {
		items = append(items, dto.ToStepResultResponse(res))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) GetStepLog(c *gin.Context) {
	runID, jobID, ok := runJobIDs(c)
	if !ok {
		return
	}

	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step index"})
		return
	}

	rc, err := h.runSvc.OpenStepLog(c.Request.Context(), runID, jobID, idx)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.WithError(err).Warn("stream step log interrupted")
	}
}

func runJobIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return uuid.Nil, uuid.Nil, false
	}
	return runID, jobID, true
}
