package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

// Store keeps artifacts and step logs on the local filesystem, one directory
// per run with a subdirectory per job:
//
//	<root>/<runID>/<jobID>/<artifact name>
//	<logRoot>/<runID>/<jobID>/step-<idx>.log
type Store struct {
	artifactDir string
	logDir      string
	maxSize     int64
}

func NewStore(artifactDir, logDir string, maxSize int64) *Store {
	return &Store{
		artifactDir: artifactDir,
		logDir:      logDir,
		maxSize:     maxSize,
	}
}

func (s *Store) Save(ctx context.Context, runID, jobID uuid.UUID, name string, r io.Reader) (*ports.ArtifactInfo, error) {
	if !validName(name) {
		return nil, domain.ErrInvalidArtifactName
	}

	dir := filepath.Join(s.artifactDir, runID.String(), jobID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create artifact file: %w", err)
	}
	defer f.Close()

	// One byte past the limit distinguishes oversized from exactly-at-limit.
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if n > s.maxSize {
		os.Remove(path)
		return nil, domain.ErrArtifactTooLarge
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	return &ports.ArtifactInfo{
		Name:       name,
		Size:       n,
		UploadedAt: info.ModTime().UTC(),
	}, nil
}

func (s *Store) List(ctx context.Context, runID, jobID uuid.UUID) ([]ports.ArtifactInfo, error) {
	dir := filepath.Join(s.artifactDir, runID.String(), jobID.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ports.ArtifactInfo{}, nil
		}
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	infos := make([]ports.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ports.ArtifactInfo{
			Name:       entry.Name(),
			Size:       fi.Size(),
			UploadedAt: fi.ModTime().UTC(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *Store) Open(ctx context.Context, runID, jobID uuid.UUID, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, domain.ErrInvalidArtifactName
	}

	path := filepath.Join(s.artifactDir, runID.String(), jobID.String(), name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

func (s *Store) SaveStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int, output []byte) (string, error) {
	dir := filepath.Join(s.logDir, runID.String(), jobID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, stepLogName(stepIndex))
	if err := os.WriteFile(path, output, 0o644); err != nil {
		return "", fmt.Errorf("write step log: %w", err)
	}
	return path, nil
}

func (s *Store) OpenStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int) (io.ReadCloser, error) {
	path := filepath.Join(s.logDir, runID.String(), jobID.String(), stepLogName(stepIndex))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrStepResultNotFound
		}
		return nil, fmt.Errorf("open step log: %w", err)
	}
	return f, nil
}

func stepLogName(idx int) string {
	return fmt.Sprintf("step-%d.log", idx)
}

// validName rejects names that could escape the job directory.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return filepath.Base(name) == name
}

var (
	_ ports.ArtifactStore = (*Store)(nil)
	_ ports.LogStore      = (*Store)(nil)
)
