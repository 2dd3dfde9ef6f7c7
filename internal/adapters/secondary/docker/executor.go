package docker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
	log "github.com/sirupsen/logrus"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/strslice"
	"github.com/moby/moby/client"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

// Executor runs each step in a fresh container so steps cannot leak state
// into the host. One container per step, removed after the step finishes.
type Executor struct {
	client  *client.Client
	image   string
	workDir string
}

// NewExecutor initializes the Docker executor using environment variables
// (e.g. DOCKER_HOST) for client configuration.
func NewExecutor(image, workDir string) (*Executor, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Executor{client: c, image: image, workDir: workDir}, nil
}

func (e *Executor) Name() string { return "docker" }

func (e *Executor) RunStep(ctx context.Context, ec ports.ExecContext, step domain.StepSpec) (*ports.StepOutcome, error) {
	containerName := fmt.Sprintf("ci-%s-%d", ec.JobID.String()[:8], stepKey(step))

	cfg := &container.Config{
		Image:      e.image,
		Cmd:        strslice.StrSlice{"sh", "-c", step.Run},
		Env:        buildEnv(ec, step),
		WorkingDir: e.workDir,
		Labels: map[string]string{
			"ci-runner.run": ec.RunID.String(),
			"ci-runner.job": ec.JobID.String(),
		},
	}

	created, err := e.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: cfg,
		Name:   containerName,
		Image:  e.image,
	})
	if err != nil {
		return nil, fmt.Errorf("create step container: %w", err)
	}
	containerID := created.ID
	defer e.remove(containerID)

	if _, err := e.client.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("start step container: %w", err)
	}

	rc, err := e.client.ContainerLogs(ctx, containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Since:      "0",
	})
	if err != nil {
		return nil, fmt.Errorf("stream step logs: %w", err)
	}
	defer rc.Close()

	var out bytes.Buffer
	logDone := make(chan error, 1)
	go func() {
		logDone <- demuxLogs(&out, rc)
	}()

	waitC := e.client.ContainerWait(ctx, containerID, client.ContainerWaitOptions{})
	var statusCode int64

	select {
	case err := <-waitC.Error:
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				<-logDone
				return &ports.StepOutcome{Output: out.Bytes()}, domain.ErrStepTimeout
			}
			return &ports.StepOutcome{Output: out.Bytes()}, fmt.Errorf("wait step container: %w", err)
		}
	case res := <-waitC.Result:
		statusCode = res.StatusCode
	case <-ctx.Done():
		<-logDone
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &ports.StepOutcome{Output: out.Bytes()}, domain.ErrStepTimeout
		}
		return &ports.StepOutcome{Output: out.Bytes()}, ctx.Err()
	}

	if err := <-logDone; err != nil {
		return &ports.StepOutcome{Output: out.Bytes()}, fmt.Errorf("read step logs: %w", err)
	}

	return &ports.StepOutcome{
		ExitCode: int(statusCode),
		Output:   out.Bytes(),
	}, nil
}

// remove is best-effort cleanup detached from the step context so a timed-out
// step still gets its container removed.
func (e *Executor) remove(containerID string) {
	_, err := e.client.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		log.WithError(err).WithField("container_id", containerID).Warn("Failed to remove step container")
	}
}

func buildEnv(ec ports.ExecContext, step domain.StepSpec) []string {
	env := []string{
		"CI=true",
		"CI_WORKFLOW=" + ec.WorkflowName,
		"CI_RUN_ID=" + ec.RunID.String(),
		"CI_JOB_ID=" + ec.JobID.String(),
	}
	for axis, value := range ec.Matrix {
		env = append(env, "MATRIX_"+envKey(axis)+"="+value)
	}
	for k, v := range ec.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range step.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func envKey(key string) string {
	b := []byte(key)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - ('a' - 'A')
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// stepKey disambiguates container names when a job retries the same step.
func stepKey(step domain.StepSpec) uint32 {
	var h uint32 = 2166136261
	for _, c := range []byte(step.Name + step.Run) {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

// demuxLogs merges Docker's multiplexed log stream (8-byte headers with the
// stream type and frame size) into a single buffer, stdout and stderr
// interleaved in arrival order.
func demuxLogs(dst io.Writer, src io.Reader) error {
	r := bufio.NewReader(src)

	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		size := binary.BigEndian.Uint32(header[4:8])
		if size == 0 {
			continue
		}

		if _, err := io.CopyN(dst, r, int64(size)); err != nil {
			return err
		}
	}
}
