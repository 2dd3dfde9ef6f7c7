package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ci-runner-service/internal/adapters/primary/http/dto"
	"ci-runner-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	headerEventType = "X-Event-Type"
	headerSignature = "X-Signature-256"
)

// HandleEvent accepts a repository webhook delivery. The event type travels
// in the X-Event-Type header; when a webhook secret is configured the body
// must carry an HMAC-SHA256 signature in X-Signature-256.
func (h *Handler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read request body"})
		return
	}

	if h.webhookSecret != "" {
		if err := verifySignature(h.webhookSecret, c.GetHeader(headerSignature), body); err != nil {
			mapDomainError(c, err)
			return
		}
	}

	var req dto.EventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := domain.Event{
		Type:         domain.EventType(c.GetHeader(headerEventType)),
		Branch:       req.Branch,
		TargetBranch: req.TargetBranch,
		CommitSHA:    req.CommitSHA,
		Sender:       req.Sender,
	}

	runs, err := h.triggerSvc.HandleEvent(c.Request.Context(), ev)
	if err != nil {
		log.WithError(err).WithField("event", ev.Type).Error("handle event failed")
		mapDomainError(c, err)
		return
	}

	resp := dto.EventResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, dto.ToRunResponse(run))
	}

	c.JSON(http.StatusAccepted, resp)
}

func verifySignature(secret, header string, body []byte) error {
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return domain.ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return domain.ErrBadSignature
	}
	return nil
}
