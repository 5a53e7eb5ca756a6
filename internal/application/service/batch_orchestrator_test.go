package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/adapter/outbound/mock"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
)

type orchestratorFixture struct {
	ledger       *mock.BalanceLedger
	tasks        *mock.TaskRepository
	resumeSource *mock.ResumeSource
	queue        *mock.TaskQueue
	orchestrator *BatchOrchestrator
	orgID        uuid.UUID
	sessionID    uuid.UUID
}

func newOrchestratorFixture(t *testing.T, tokens float64) *orchestratorFixture {
	t.Helper()

	f := &orchestratorFixture{
		ledger:       mock.NewBalanceLedger(),
		tasks:        mock.NewTaskRepository(),
		resumeSource: mock.NewResumeSource(),
		queue:        mock.NewTaskQueue(),
		orgID:        uuid.New(),
		sessionID:    uuid.New(),
	}
	f.ledger.Seed(entity.NewBalance(f.orgID, tokens, false))
	f.orchestrator = NewBatchOrchestrator(
		BatchOrchestratorConfig{MinimumBalance: 5, FetchParallel: 3},
		f.ledger, f.tasks, f.resumeSource, f.queue,
	)
	return f
}

func (f *orchestratorFixture) request(resumeRefs ...string) dto.SubmitBatchRequest {
	return dto.SubmitBatchRequest{
		OrganizationID: f.orgID,
		SessionID:      f.sessionID,
		VacancyRef:     "vac-1",
		VacancyText:    "Senior Go engineer",
		ResumeRefs:     resumeRefs,
	}
}

func TestSubmitBatch_Dispatch(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	f.resumeSource.Resumes["r1"] = "resume one"
	f.resumeSource.Resumes["r2"] = "resume two"

	manifest, err := f.orchestrator.SubmitBatch(context.Background(), f.request("r1", "r2"))
	require.NoError(t, err)

	assert.Equal(t, 2, manifest.TaskCount)
	assert.Len(t, manifest.DispatchedTaskIDs, 2)
	assert.Empty(t, manifest.SkippedResumeRefs)

	messages := f.queue.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "resume one", messages[0].ResumeText)
	assert.Equal(t, 1, messages[0].Current)
	assert.Equal(t, 2, messages[0].Total)
	assert.Equal(t, "r2", messages[1].ResumeRef)

	_, total, err := f.tasks.FindBySession(context.Background(), f.sessionID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSubmitBatch_AdmissionGate(t *testing.T) {
	f := newOrchestratorFixture(t, 4.99)
	f.resumeSource.Resumes["r1"] = "resume one"

	_, err := f.orchestrator.SubmitBatch(context.Background(), f.request("r1"))
	require.ErrorIs(t, err, domainerrors.ErrInsufficientBalance)

	// Zero tasks created, nothing dispatched.
	_, total, findErr := f.tasks.FindBySession(context.Background(), f.sessionID, 0, 10)
	require.NoError(t, findErr)
	assert.Zero(t, total)
	assert.Empty(t, f.queue.Messages())
}

func TestSubmitBatch_SkipDoesNotAbort(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	f.resumeSource.Resumes["r1"] = "resume one"
	f.resumeSource.FetchErrors["r2"] = domainerrors.ErrResumeUnavailable
	f.resumeSource.Resumes["r3"] = "resume three"

	manifest, err := f.orchestrator.SubmitBatch(context.Background(), f.request("r1", "r2", "r3"))
	require.NoError(t, err)

	assert.Equal(t, 2, manifest.TaskCount)
	assert.Equal(t, []string{"r2"}, manifest.SkippedResumeRefs)

	messages := f.queue.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "r1", messages[0].ResumeRef)
	assert.Equal(t, "r3", messages[1].ResumeRef)
}

func TestSubmitBatch_EmptyBodySkipped(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	f.resumeSource.Resumes["r1"] = ""
	f.resumeSource.Resumes["r2"] = "resume two"

	manifest, err := f.orchestrator.SubmitBatch(context.Background(), f.request("r1", "r2"))
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.TaskCount)
	assert.Equal(t, []string{"r1"}, manifest.SkippedResumeRefs)
}

func TestSubmitBatch_EmptyRefsEnumeratesVacancy(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	f.resumeSource.Vacancies["vac-1"] = []string{"r1", "r2"}
	f.resumeSource.Resumes["r1"] = "resume one"
	f.resumeSource.Resumes["r2"] = "resume two"

	manifest, err := f.orchestrator.SubmitBatch(context.Background(), f.request())
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.TaskCount)
}

func TestSubmitBatch_ListFailureAborts(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	f.resumeSource.ListError = errors.New("upstream down")

	_, err := f.orchestrator.SubmitBatch(context.Background(), f.request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestSubmitBatch_BalanceMissing(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	req := f.request("r1")
	req.OrganizationID = uuid.New() // no balance seeded

	_, err := f.orchestrator.SubmitBatch(context.Background(), req)
	require.ErrorIs(t, err, domainerrors.ErrBalanceNotFound)
}

func TestSubmitBatch_Validation(t *testing.T) {
	f := newOrchestratorFixture(t, 100)

	req := f.request("r1")
	req.OrganizationID = uuid.Nil
	_, err := f.orchestrator.SubmitBatch(context.Background(), req)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	req = f.request("r1")
	req.SessionID = uuid.Nil
	_, err = f.orchestrator.SubmitBatch(context.Background(), req)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	req = f.request("r1")
	req.VacancyRef = ""
	req.VacancyText = ""
	_, err = f.orchestrator.SubmitBatch(context.Background(), req)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestSubmitBatch_PublishFailureKeepsTask(t *testing.T) {
	f := newOrchestratorFixture(t, 100)
	f.resumeSource.Resumes["r1"] = "resume one"
	f.queue.PublishError = errors.New("broker unavailable")

	manifest, err := f.orchestrator.SubmitBatch(context.Background(), f.request("r1"))
	require.NoError(t, err)

	// The task row exists and stays pending even though dispatch failed.
	assert.Equal(t, 1, manifest.TaskCount)
	_, total, findErr := f.tasks.FindBySession(context.Background(), f.sessionID, 0, 10)
	require.NoError(t, findErr)
	assert.Equal(t, 1, total)
}
