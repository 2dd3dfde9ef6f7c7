package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

// Executor runs steps as local shell commands. This is the default executor
// for single-node deployments and for tests.
type Executor struct {
	inheritEnv bool
}

type Option func(*Executor)

// WithInheritedEnv makes step commands see the daemon's own environment in
// addition to the job environment. Off by default so jobs run clean.
func WithInheritedEnv() Option {
	return func(e *Executor) { e.inheritEnv = true }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Name() string { return "shell" }

func (e *Executor) RunStep(ctx context.Context, ec ports.ExecContext, step domain.StepSpec) (*ports.StepOutcome, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", step.Run)
	cmd.Dir = ec.WorkDir
	cmd.Env = buildEnv(e.inheritEnv, ec, step)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	outcome := &ports.StepOutcome{Output: out.Bytes()}

	if ctx.Err() == context.DeadlineExceeded {
		return outcome, domain.ErrStepTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
			return outcome, nil
		}
		return outcome, fmt.Errorf("run step command: %w", err)
	}
	return outcome, nil
}

// buildEnv merges, in increasing precedence, the daemon environment (when
// inherited), the runner variables, the matrix variables, the workflow
// environment and the step environment.
func buildEnv(inherit bool, ec ports.ExecContext, step domain.StepSpec) []string {
	var env []string
	if inherit {
		env = os.Environ()
	}

	env = append(env,
		"CI=true",
		"CI_WORKFLOW="+ec.WorkflowName,
		"CI_RUN_ID="+ec.RunID.String(),
		"CI_JOB_ID="+ec.JobID.String(),
	)
	for axis, value := range ec.Matrix {
		env = append(env, "MATRIX_"+sanitizeEnvKey(axis)+"="+value)
	}
	for k, v := range ec.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range step.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func sanitizeEnvKey(key string) string {
	upper := strings.ToUpper(key)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
}
