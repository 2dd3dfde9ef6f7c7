package handlers

import (
	"errors"
	"net/http"

	"ci-runner-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrWorkflowNotFound),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrStepResultNotFound),
		errors.Is(err, domain.ErrArtifactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrWorkflowNameConflict),
		errors.Is(err, domain.ErrWorkflowHasActiveRuns),
		errors.Is(err, domain.ErrRunFinished),
		errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidSpec),
		errors.Is(err, domain.ErrInvalidWorkflowName),
		errors.Is(err, domain.ErrNoSteps),
		errors.Is(err, domain.ErrStepMissingRun),
		errors.Is(err, domain.ErrNoTriggers),
		errors.Is(err, domain.ErrEmptyMatrixAxis),
		errors.Is(err, domain.ErrDuplicateAxisValue),
		errors.Is(err, domain.ErrEmptyMatrix),
		errors.Is(err, domain.ErrUnsupportedEvent),
		errors.Is(err, domain.ErrMissingBranch),
		errors.Is(err, domain.ErrInvalidArtifactName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Payload too large
	case errors.Is(err, domain.ErrArtifactTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})

	// Authentication errors
	case errors.Is(err, domain.ErrBadSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
