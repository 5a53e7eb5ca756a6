package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"resumeflow/internal/adapter/outbound/mock"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/application/service"
	"resumeflow/internal/config"
	"resumeflow/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	ledger *mock.BalanceLedger
	tasks  *mock.TaskRepository
	usage  *mock.UsageRecordRepository
	source *mock.ResumeSource
	queue  *mock.TaskQueue
	stream *mock.ProgressStream
	server *Server
	base   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		ledger: mock.NewBalanceLedger(),
		tasks:  mock.NewTaskRepository(),
		usage:  mock.NewUsageRecordRepository(),
		source: mock.NewResumeSource(),
		queue:  mock.NewTaskQueue(),
		stream: mock.NewProgressStream(),
	}

	cfg := &config.Config{
		API: config.APIConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}

	orchestrator := service.NewBatchOrchestrator(
		service.BatchOrchestratorConfig{},
		f.ledger, f.tasks, f.source, f.queue,
	)

	server, err := NewServerBuilder(cfg).
		WithAnalysisService(orchestrator).
		WithTaskQueryService(service.NewDefaultTaskQueryService(f.tasks)).
		WithExportService(service.NewDefaultExportService(f.tasks)).
		WithBillingService(service.NewDefaultBillingService(f.ledger, f.usage)).
		WithProgressStream(f.stream).
		WithDefaultMiddleware().
		WithVersion("test").
		Build()
	require.NoError(t, err)

	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	f.server = server
	f.base = "http://" + server.Addr()
	return f
}

func (f *apiFixture) doJSON(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.base+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSubmitBatch_Accepted(t *testing.T) {
	f := newAPIFixture(t)

	orgID := uuid.New()
	sessionID := uuid.New()
	f.ledger.Seed(entity.NewBalance(orgID, 100, false))
	f.source.Resumes["r1"] = "ten years of Go"
	f.source.Resumes["r2"] = "junior analyst"

	resp := f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/%s/sessions/%s/analyses", orgID, sessionID),
		dto.SubmitBatchRequest{
			VacancyRef: "vac-1",
			ResumeRefs: []string{"r1", "r2"},
		})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	manifest := decodeBody[dto.BatchManifest](t, resp)
	assert.Len(t, manifest.DispatchedTaskIDs, 2)
	assert.Empty(t, manifest.SkippedResumeRefs)
	assert.Equal(t, 2, manifest.TaskCount)
	assert.Len(t, f.queue.Messages(), 2)
}

func TestSubmitBatch_InsufficientBalance(t *testing.T) {
	f := newAPIFixture(t)

	orgID := uuid.New()
	f.ledger.Seed(entity.NewBalance(orgID, 1, false))

	resp := f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/%s/sessions/%s/analyses", orgID, uuid.New()),
		dto.SubmitBatchRequest{VacancyRef: "vac-1", ResumeRefs: []string{"r1"}})

	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	errResp := decodeBody[dto.ErrorResponse](t, resp)
	assert.Equal(t, string(dto.ErrorCodeInsufficientBalance), errResp.Error)
}

func TestSubmitBatch_UnknownOrganization(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/%s/sessions/%s/analyses", uuid.New(), uuid.New()),
		dto.SubmitBatchRequest{VacancyRef: "vac-1", ResumeRefs: []string{"r1"}})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errResp := decodeBody[dto.ErrorResponse](t, resp)
	assert.Equal(t, string(dto.ErrorCodeBalanceNotFound), errResp.Error)
}

func TestSubmitBatch_InvalidIDs(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/not-a-uuid/sessions/%s/analyses", uuid.New()),
		dto.SubmitBatchRequest{VacancyRef: "vac-1"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSubmitBatch_MissingVacancy(t *testing.T) {
	f := newAPIFixture(t)

	orgID := uuid.New()
	f.ledger.Seed(entity.NewBalance(orgID, 100, false))

	resp := f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/%s/sessions/%s/analyses", orgID, uuid.New()),
		dto.SubmitBatchRequest{ResumeRefs: []string{"r1"}})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decodeBody[dto.ErrorResponse](t, resp)
	assert.Equal(t, string(dto.ErrorCodeInvalidRequest), errResp.Error)
}

func TestListTasks_ReturnsSessionTasks(t *testing.T) {
	f := newAPIFixture(t)

	sessionID := uuid.New()
	task := entity.NewAnalysisTask(uuid.New(), sessionID, "r1", "vac-1")
	require.NoError(t, f.tasks.Create(context.Background(), task))

	resp := f.doJSON(t, http.MethodGet, fmt.Sprintf("/sessions/%s/tasks", sessionID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[dto.TaskListResponse](t, resp)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, task.ID(), list.Tasks[0].ID)
	assert.Equal(t, "pending", list.Tasks[0].Status)
	assert.Equal(t, 1, list.Pagination.Total)
}

func TestListTasks_InvalidLimit(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodGet, fmt.Sprintf("/sessions/%s/tasks?limit=500", uuid.New()), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetTask_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodGet,
		fmt.Sprintf("/sessions/%s/tasks/%s", uuid.New(), uuid.New()), nil)

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errResp := decodeBody[dto.ErrorResponse](t, resp)
	assert.Equal(t, string(dto.ErrorCodeTaskNotFound), errResp.Error)
}

func TestExportTasks_CSVHeaders(t *testing.T) {
	f := newAPIFixture(t)

	sessionID := uuid.New()
	task := entity.NewAnalysisTask(uuid.New(), sessionID, "r1", "vac-1")
	require.NoError(t, f.tasks.Create(context.Background(), task))

	resp := f.doJSON(t, http.MethodGet,
		fmt.Sprintf("/sessions/%s/tasks/export?format=csv", sessionID), nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")
}

func TestExportTasks_UnknownFormat(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodGet,
		fmt.Sprintf("/sessions/%s/tasks/export?format=pdf", uuid.New()), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestBalanceEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	orgID := uuid.New()
	f.ledger.Seed(entity.NewBalance(orgID, 42, true))

	resp := f.doJSON(t, http.MethodGet, fmt.Sprintf("/organizations/%s/balance", orgID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decodeBody[dto.BalanceResponse](t, resp)
	assert.InDelta(t, 42.0, balance.TokenCount, 0.001)
	assert.True(t, balance.IsTrial)

	resp = f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/%s/balance/topup", orgID),
		dto.TopUpRequest{Amount: 58})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance = decodeBody[dto.BalanceResponse](t, resp)
	assert.InDelta(t, 100.0, balance.TokenCount, 0.001)
}

func TestTopUp_RejectsNonPositiveAmount(t *testing.T) {
	f := newAPIFixture(t)

	orgID := uuid.New()
	f.ledger.Seed(entity.NewBalance(orgID, 10, false))

	resp := f.doJSON(t, http.MethodPost,
		fmt.Sprintf("/organizations/%s/balance/topup", orgID),
		dto.TopUpRequest{Amount: -5})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListUsage_Empty(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodGet, fmt.Sprintf("/organizations/%s/usage", uuid.New()), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	usage := decodeBody[dto.UsageListResponse](t, resp)
	assert.Empty(t, usage.Records)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.doJSON(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])
}

func TestRequestIDPropagation(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.base+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestServerStart_RejectsDoubleStart(t *testing.T) {
	f := newAPIFixture(t)

	err := f.server.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServerBuilder_RequiresServices(t *testing.T) {
	cfg := &config.Config{API: config.APIConfig{Port: "0"}}

	_, err := NewServerBuilder(cfg).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis service is required")
}
