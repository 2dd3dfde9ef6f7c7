package ports

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

type ArtifactInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ArtifactStore persists files a job uploads (coverage profiles, reports).
type ArtifactStore interface {
	Save(ctx context.Context, runID, jobID uuid.UUID, name string, r io.Reader) (*ArtifactInfo, error)
	List(ctx context.Context, runID, jobID uuid.UUID) ([]ArtifactInfo, error)
	Open(ctx context.Context, runID, jobID uuid.UUID, name string) (io.ReadCloser, error)
}

// LogStore persists per-step combined output.
type LogStore interface {
	SaveStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int, output []byte) (string, error)
	OpenStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int) (io.ReadCloser, error)
}
