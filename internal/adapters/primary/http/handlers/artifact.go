package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UploadArtifact accepts a multipart upload with a single "file" part. The
// part's filename becomes the artifact name unless a "name" form value
// overrides it.
func (h *Handler) UploadArtifact(c *gin.Context) {
	runID, jobID, ok := runJobIDs(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file part"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = fileHeader.Filename
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	info, err := h.artifactSvc.Save(c.Request.Context(), runID, jobID, name, f)
	if err != nil {
		log.WithError(err).WithField("artifact", name).Error("upload artifact failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

func (h *Handler) ListArtifacts(c *gin.Context) {
	runID, jobID, ok := runJobIDs(c)
	if !ok {
		return
	}

	infos, err := h.artifactSvc.List(c.Request.Context(), runID, jobID)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": infos})
}

func (h *Handler) DownloadArtifact(c *gin.Context) {
	runID, jobID, ok := runJobIDs(c)
	if !ok {
		return
	}

	name := c.Param("name")
	rc, err := h.artifactSvc.Open(c.Request.Context(), runID, jobID, name)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.WithError(err).Warn("stream artifact interrupted")
	}
}
