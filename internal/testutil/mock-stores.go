package testutil

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

// MockArtifactStore is a mock of ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Save(ctx context.Context, runID, jobID uuid.UUID, name string, r io.Reader) (*ports.ArtifactInfo, error) {
	args := m.Called(ctx, runID, jobID, name, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ArtifactInfo), args.Error(1)
}

func (m *MockArtifactStore) List(ctx context.Context, runID, jobID uuid.UUID) ([]ports.ArtifactInfo, error) {
	args := m.Called(ctx, runID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.ArtifactInfo), args.Error(1)
}

func (m *MockArtifactStore) Open(ctx context.Context, runID, jobID uuid.UUID, name string) (io.ReadCloser, error) {
	args := m.Called(ctx, runID, jobID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockLogStore is a mock of LogStore.
type MockLogStore struct {
	mock.Mock
}

func (m *MockLogStore) SaveStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int, output []byte) (string, error) {
	args := m.Called(ctx, runID, jobID, stepIndex, output)
	return args.String(0), args.Error(1)
}

func (m *MockLogStore) OpenStepLog(ctx context.Context, runID, jobID uuid.UUID, stepIndex int) (io.ReadCloser, error) {
	args := m.Called(ctx, runID, jobID, stepIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockStepExecutor is a mock of StepExecutor.
type MockStepExecutor struct {
	mock.Mock
}

func (m *MockStepExecutor) Name() string {
	return "mock"
}

func (m *MockStepExecutor) RunStep(ctx context.Context, ec ports.ExecContext, step domain.StepSpec) (*ports.StepOutcome, error) {
	args := m.Called(ctx, ec, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.StepOutcome), args.Error(1)
}

// MockRunCanceller is a mock of RunCanceller.
type MockRunCanceller struct {
	mock.Mock
}

func (m *MockRunCanceller) CancelRun(runID uuid.UUID) bool {
	args := m.Called(runID)
	return args.Bool(0)
}
