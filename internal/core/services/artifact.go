package services

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

// coverageRe matches the summary line of `go test -cover` output,
// e.g. "coverage: 87.5% of statements".
var coverageRe = regexp.MustCompile(`coverage:\s+(\d+(?:\.\d+)?)%`)

type ArtifactService struct {
	store ports.ArtifactStore
	jobs  ports.JobRepository
}

func NewArtifactService(store ports.ArtifactStore, jobs ports.JobRepository) *ArtifactService {
	return &ArtifactService{store: store, jobs: jobs}
}

// Save stores an uploaded artifact for a job. Artifacts named like coverage
// output ("coverage.out", "coverage.txt") are scanned for a Go coverage
// summary line and the percentage is recorded on the job.
func (s *ArtifactService) Save(ctx context.Context, runID, jobID uuid.UUID, name string, r io.Reader) (*ports.ArtifactInfo, error) {
	if name == "" {
		return nil, domain.ErrInvalidArtifactName
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RunID != runID {
		return nil, domain.ErrJobNotFound
	}

	if !isCoverageArtifact(name) {
		return s.store.Save(ctx, runID, jobID, name, r)
	}

	// Coverage artifacts are small; buffer so the summary line can be scanned
	// after the store consumes the reader.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Save(ctx, runID, jobID, name, strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}

	if pct, ok := ParseCoverage(string(data)); ok {
		if err := s.jobs.SetCoverage(ctx, jobID, pct); err != nil {
			log.WithError(err).WithField("job", jobID).Warn("record coverage failed")
		}
	}
	return info, nil
}

func (s *ArtifactService) List(ctx context.Context, runID, jobID uuid.UUID) ([]ports.ArtifactInfo, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RunID != runID {
		return nil, domain.ErrJobNotFound
	}
	return s.store.List(ctx, runID, jobID)
}

func (s *ArtifactService) Open(ctx context.Context, runID, jobID uuid.UUID, name string) (io.ReadCloser, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RunID != runID {
		return nil, domain.ErrJobNotFound
	}
	return s.store.Open(ctx, runID, jobID, name)
}

// ParseCoverage extracts the statement coverage percentage from Go tool
// output. Returns false when no summary line is present.
func ParseCoverage(output string) (float64, bool) {
	m := coverageRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func isCoverageArtifact(name string) bool {
	base := strings.ToLower(name)
	return strings.HasPrefix(base, "coverage")
}
