package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `
name: build
description: build and test on every push
on:
  push:
    branches: [main]
  pull_request:
    branches: [main]
env:
  CGO_ENABLED: "0"
matrix:
  go-version: ["1.23", "1.24"]
  os: [ubuntu-latest, macos-latest, windows-latest]
steps:
  - name: checkout
    run: git clone "$REPO_URL" .
  - name: vet
    run: go vet ./...
  - name: test
    run: go test -race -coverprofile=coverage.out ./...
    timeout-minutes: 30
`

func TestParseWorkflowSpec(t *testing.T) {
	spec, err := ParseWorkflowSpec([]byte(sampleSpec))
	require.NoError(t, err)

	assert.Equal(t, "build", spec.Name)
	require.NotNil(t, spec.On.Push)
	assert.Equal(t, []string{"main"}, spec.On.Push.Branches)
	require.NotNil(t, spec.On.PullRequest)
	assert.Equal(t, map[string]string{"CGO_ENABLED": "0"}, spec.Env)

	assert.Equal(t, []string{"1.23", "1.24"}, spec.Matrix.Axes["go-version"])
	assert.Len(t, spec.Matrix.Axes["os"], 3)

	require.Len(t, spec.Steps, 3)
	assert.Equal(t, "vet", spec.Steps[1].Name)
	assert.Equal(t, 30, spec.Steps[2].TimeoutMinutes)
}

func TestParseWorkflowSpec_MatrixExclude(t *testing.T) {
	spec, err := ParseWorkflowSpec([]byte(`
name: build
on:
  push: {}
matrix:
  go-version: ["1.23", "1.24"]
  os: [linux, windows]
  exclude:
    - go-version: "1.23"
      os: windows
steps:
  - name: test
    run: go test ./...
`))
	require.NoError(t, err)

	require.Len(t, spec.Matrix.Exclude, 1)
	assert.Equal(t, "windows", spec.Matrix.Exclude[0]["os"])
	assert.NotContains(t, spec.Matrix.Axes, "exclude")
	assert.Len(t, ExpandMatrix(spec.Matrix), 3)
}

func TestParseWorkflowSpec_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "malformed yaml",
			yaml: "name: [unclosed",
			want: ErrInvalidSpec,
		},
		{
			name: "missing name",
			yaml: "on:\n  push: {}\nsteps:\n  - run: 'true'\n",
			want: ErrInvalidWorkflowName,
		},
		{
			name: "no triggers",
			yaml: "name: w\nsteps:\n  - run: 'true'\n",
			want: ErrNoTriggers,
		},
		{
			name: "no steps",
			yaml: "name: w\non:\n  push: {}\n",
			want: ErrNoSteps,
		},
		{
			name: "step without run",
			yaml: "name: w\non:\n  push: {}\nsteps:\n  - name: broken\n",
			want: ErrStepMissingRun,
		},
		{
			name: "empty axis",
			yaml: "name: w\non:\n  push: {}\nmatrix:\n  os: []\nsteps:\n  - run: 'true'\n",
			want: ErrEmptyMatrixAxis,
		},
		{
			name: "duplicate axis value",
			yaml: "name: w\non:\n  push: {}\nmatrix:\n  os: [linux, linux]\nsteps:\n  - run: 'true'\n",
			want: ErrDuplicateAxisValue,
		},
		{
			name: "everything excluded",
			yaml: "name: w\non:\n  push: {}\nmatrix:\n  os: [linux]\n  exclude:\n    - os: linux\nsteps:\n  - run: 'true'\n",
			want: ErrEmptyMatrix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflowSpec([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWorkflowSpec_Matches(t *testing.T) {
	spec, err := ParseWorkflowSpec([]byte(sampleSpec))
	require.NoError(t, err)

	assert.True(t, spec.Matches(Event{Type: EventPush, Branch: "main"}))
	assert.False(t, spec.Matches(Event{Type: EventPush, Branch: "feature/x"}))

	// Pull requests match on the target branch, not the source branch.
	assert.True(t, spec.Matches(Event{Type: EventPullRequest, Branch: "feature/x", TargetBranch: "main"}))
	assert.False(t, spec.Matches(Event{Type: EventPullRequest, Branch: "main", TargetBranch: "develop"}))
}

func TestWorkflowSpec_Matches_Globs(t *testing.T) {
	spec := &WorkflowSpec{
		On: TriggerSpec{
			Push: &BranchFilter{Branches: []string{"main", "releases/*"}},
		},
	}

	assert.True(t, spec.Matches(Event{Type: EventPush, Branch: "main"}))
	assert.True(t, spec.Matches(Event{Type: EventPush, Branch: "releases/v2"}))
	assert.False(t, spec.Matches(Event{Type: EventPush, Branch: "hotfix/v2"}))
}

func TestWorkflowSpec_Matches_EmptyFilter(t *testing.T) {
	spec := &WorkflowSpec{On: TriggerSpec{Push: &BranchFilter{}}}

	assert.True(t, spec.Matches(Event{Type: EventPush, Branch: "anything"}))
	assert.False(t, spec.Matches(Event{Type: EventPullRequest, TargetBranch: "anything"}))
}

func TestStepTimeout(t *testing.T) {
	def := 10 * time.Minute

	assert.Equal(t, def, StepSpec{}.StepTimeout(def))
	assert.Equal(t, 30*time.Minute, StepSpec{TimeoutMinutes: 30}.StepTimeout(def))
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "build-and-test", GenerateSlug("Build And Test"))
	assert.Equal(t, "go-124", GenerateSlug("Go 1.24!"))
}

func TestEventValidate(t *testing.T) {
	assert.NoError(t, Event{Type: EventPush, Branch: "main"}.Validate())
	assert.ErrorIs(t, Event{Type: EventPush}.Validate(), ErrMissingBranch)

	assert.NoError(t, Event{Type: EventPullRequest, TargetBranch: "main"}.Validate())
	assert.ErrorIs(t, Event{Type: EventPullRequest}.Validate(), ErrMissingBranch)

	assert.ErrorIs(t, Event{Type: "deploy"}.Validate(), ErrUnsupportedEvent)
}
