package shell

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

func testExecContext() ports.ExecContext {
	return ports.ExecContext{
		RunID:        uuid.New(),
		JobID:        uuid.New(),
		WorkflowName: "build",
		Matrix:       map[string]string{"go-version": "1.24", "os": "linux"},
	}
}

func TestRunStep_Success(t *testing.T) {
	e := NewExecutor()

	outcome, err := e.RunStep(context.Background(), testExecContext(), domain.StepSpec{
		Name: "hello",
		Run:  "echo hello",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "hello\n", string(outcome.Output))
}

func TestRunStep_NonZeroExit(t *testing.T) {
	e := NewExecutor()

	outcome, err := e.RunStep(context.Background(), testExecContext(), domain.StepSpec{
		Name: "fail",
		Run:  "echo about to fail; exit 3",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, outcome.ExitCode)
	assert.Contains(t, string(outcome.Output), "about to fail")
}

func TestRunStep_Timeout(t *testing.T) {
	e := NewExecutor()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := e.RunStep(ctx, testExecContext(), domain.StepSpec{
		Name: "slow",
		Run:  "sleep 10",
	})

	assert.ErrorIs(t, err, domain.ErrStepTimeout)
}

func TestRunStep_Environment(t *testing.T) {
	e := NewExecutor()
	ec := testExecContext()
	ec.Env = map[string]string{"WORKFLOW_VAR": "from-workflow"}

	outcome, err := e.RunStep(context.Background(), ec, domain.StepSpec{
		Name: "env",
		Run:  `echo "$CI/$CI_WORKFLOW/$MATRIX_GO_VERSION/$MATRIX_OS/$WORKFLOW_VAR/$STEP_VAR"`,
		Env:  map[string]string{"STEP_VAR": "from-step"},
	})

	require.NoError(t, err)
	assert.Equal(t, "true/build/1.24/linux/from-workflow/from-step\n", string(outcome.Output))
}

func TestRunStep_StepEnvOverridesWorkflowEnv(t *testing.T) {
	e := NewExecutor()
	ec := testExecContext()
	ec.Env = map[string]string{"SHARED": "workflow"}

	outcome, err := e.RunStep(context.Background(), ec, domain.StepSpec{
		Name: "override",
		Run:  `echo "$SHARED"`,
		Env:  map[string]string{"SHARED": "step"},
	})

	require.NoError(t, err)
	assert.Equal(t, "step\n", string(outcome.Output))
}

func TestRunStep_WorkDir(t *testing.T) {
	e := NewExecutor()
	ec := testExecContext()
	ec.WorkDir = t.TempDir()

	outcome, err := e.RunStep(context.Background(), ec, domain.StepSpec{
		Name: "pwd",
		Run:  "pwd",
	})

	require.NoError(t, err)
	assert.Equal(t, ec.WorkDir+"\n", string(outcome.Output))
}
