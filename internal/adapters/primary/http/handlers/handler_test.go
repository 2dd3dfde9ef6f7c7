package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/services"
	"ci-runner-service/internal/testutil"
)

type routerFixture struct {
	workflows *testutil.MockWorkflowRepo
	runs      *testutil.MockRunRepo
	jobs      *testutil.MockJobRepo
	store     *testutil.MockArtifactStore
	router    *gin.Engine
}

func setupRouter(secret string) *routerFixture {
	gin.SetMode(gin.TestMode)

	f := &routerFixture{
		workflows: new(testutil.MockWorkflowRepo),
		runs:      new(testutil.MockRunRepo),
		jobs:      new(testutil.MockJobRepo),
		store:     new(testutil.MockArtifactStore),
	}

	workflowSvc := services.NewWorkflowService(f.workflows, f.runs)
	triggerSvc := services.NewTriggerService(f.workflows, f.runs)
	runSvc := services.NewRunService(f.runs, f.jobs, f.workflows, new(testutil.MockLogStore), new(testutil.MockRunCanceller))
	artifactSvc := services.NewArtifactService(f.store, f.jobs)

	h := New(workflowSvc, triggerSvc, runSvc, artifactSvc, secret)
	f.router = gin.New()
	h.RegisterRoutes(f.router.Group("/api/v1/ci"))
	return f
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pushWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID:   uuid.New(),
		Name: "build",
		Spec: domain.WorkflowSpec{
			Name:  "build",
			On:    domain.TriggerSpec{Push: &domain.BranchFilter{Branches: []string{"main"}}},
			Steps: []domain.StepSpec{{Name: "test", Run: "go test ./..."}},
		},
	}
}

// ============================================================================
// Webhook Tests
// ============================================================================

func TestHandleEvent_ValidSignature(t *testing.T) {
	f := setupRouter("s3cret")

	f.workflows.On("List", mock.Anything, mock.AnythingOfType("ports.WorkflowListFilter")).
		Return([]*domain.Workflow{pushWorkflow()}, 1, nil)
	f.runs.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	body := []byte(`{"branch":"main","commit_sha":"abc1234"}`)
	req, _ := http.NewRequest("POST", "/api/v1/ci/events", bytes.NewReader(body))
	req.Header.Set("X-Event-Type", "push")
	req.Header.Set("X-Signature-256", sign("s3cret", body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["runs"], 1)
}

func TestHandleEvent_BadSignature(t *testing.T) {
	f := setupRouter("s3cret")

	body := []byte(`{"branch":"main"}`)
	req, _ := http.NewRequest("POST", "/api/v1/ci/events", bytes.NewReader(body))
	req.Header.Set("X-Event-Type", "push")
	req.Header.Set("X-Signature-256", sign("wrong-secret", body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.workflows.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	f.runs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_MissingSignature(t *testing.T) {
	f := setupRouter("s3cret")

	req, _ := http.NewRequest("POST", "/api/v1/ci/events", bytes.NewReader([]byte(`{"branch":"main"}`)))
	req.Header.Set("X-Event-Type", "push")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.workflows.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestHandleEvent_NoSecretConfigured(t *testing.T) {
	f := setupRouter("")

	f.workflows.On("List", mock.Anything, mock.AnythingOfType("ports.WorkflowListFilter")).
		Return([]*domain.Workflow{}, 0, nil)

	req, _ := http.NewRequest("POST", "/api/v1/ci/events", bytes.NewReader([]byte(`{"branch":"main"}`)))
	req.Header.Set("X-Event-Type", "push")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleEvent_UnsupportedType(t *testing.T) {
	f := setupRouter("")

	req, _ := http.NewRequest("POST", "/api/v1/ci/events", bytes.NewReader([]byte(`{"branch":"main"}`)))
	req.Header.Set("X-Event-Type", "deploy")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Workflow Handler Tests
// ============================================================================

func TestRegisterWorkflow(t *testing.T) {
	f := setupRouter("")

	f.workflows.On("Create", mock.Anything, mock.Anything).Return(nil)

	body, _ := json.Marshal(map[string]string{
		"spec": "name: build\non:\n  push:\n    branches: [main]\nsteps:\n  - name: test\n    run: go test ./...\n",
	})
	req, _ := http.NewRequest("POST", "/api/v1/ci/workflows", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "build", resp["name"])
}

func TestRegisterWorkflow_MalformedYAML(t *testing.T) {
	f := setupRouter("")

	body, _ := json.Marshal(map[string]string{"spec": "name: [unclosed"})
	req, _ := http.NewRequest("POST", "/api/v1/ci/workflows", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.workflows.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterWorkflow_NameConflict(t *testing.T) {
	f := setupRouter("")

	f.workflows.On("Create", mock.Anything, mock.Anything).Return(domain.ErrWorkflowNameConflict)

	body, _ := json.Marshal(map[string]string{
		"spec": "name: build\non:\n  push: {}\nsteps:\n  - run: 'true'\n",
	})
	req, _ := http.NewRequest("POST", "/api/v1/ci/workflows", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	f := setupRouter("")

	id := uuid.New()
	f.workflows.On("GetByID", mock.Anything, id).Return(nil, domain.ErrWorkflowNotFound)

	req, _ := http.NewRequest("GET", "/api/v1/ci/workflows/"+id.String(), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetWorkflow_InvalidID(t *testing.T) {
	f := setupRouter("")

	req, _ := http.NewRequest("GET", "/api/v1/ci/workflows/not-a-uuid", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Run Handler Tests
// ============================================================================

func TestCancelRun_Finished(t *testing.T) {
	f := setupRouter("")

	id := uuid.New()
	f.runs.On("GetByID", mock.Anything, id).Return(&domain.Run{
		ID:     id,
		Status: domain.StatusSuccess,
	}, nil)

	req, _ := http.NewRequest("POST", "/api/v1/ci/runs/"+id.String()+"/cancel", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ============================================================================
// Artifact Handler Tests
// ============================================================================

func TestUploadArtifact_TooLarge(t *testing.T) {
	f := setupRouter("")

	runID := uuid.New()
	jobID := uuid.New()
	f.jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{
		ID:        jobID,
		RunID:     runID,
		Status:    domain.StatusRunning,
		CreatedAt: time.Now(),
	}, nil)
	f.store.On("Save", mock.Anything, runID, jobID, "report.bin", mock.Anything).
		Return(nil, domain.ErrArtifactTooLarge)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "report.bin")
	part.Write([]byte("payload"))
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/v1/ci/runs/"+runID.String()+"/jobs/"+jobID.String()+"/artifacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
