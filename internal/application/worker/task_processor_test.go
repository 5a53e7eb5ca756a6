package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/adapter/outbound/mock"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/config"
	"resumeflow/internal/domain/entity"
	"resumeflow/internal/port/outbound"
)

type processorFixture struct {
	ledger    *mock.BalanceLedger
	tasks     *mock.TaskRepository
	usage     *mock.UsageRecordRepository
	llm       *mock.LLMClient
	notifier  *mock.Notifier
	processor *TaskProcessor
	orgID     uuid.UUID
	sessionID uuid.UUID
}

func newProcessorFixture(t *testing.T, tokens float64) *processorFixture {
	t.Helper()

	pricing, err := config.LoadPricingTable("", 200)
	require.NoError(t, err)

	f := &processorFixture{
		ledger:    mock.NewBalanceLedger(),
		tasks:     mock.NewTaskRepository(),
		usage:     mock.NewUsageRecordRepository(),
		llm:       mock.NewLLMClient(),
		notifier:  mock.NewNotifier(),
		orgID:     uuid.New(),
		sessionID: uuid.New(),
	}
	f.ledger.Seed(entity.NewBalance(f.orgID, tokens, false))

	f.processor, err = NewTaskProcessor(
		TaskProcessorConfig{MinimumBalance: 5, AssistantID: "resume-analysis", Pricing: pricing},
		f.ledger, f.tasks, f.usage, mock.NewTransactionScope(), f.llm, f.notifier, nil,
	)
	require.NoError(t, err)
	return f
}

func (f *processorFixture) pendingTask(t *testing.T) outbound.TaskMessage {
	t.Helper()

	taskID := uuid.New()
	task := entity.NewAnalysisTask(taskID, f.sessionID, "r1", "vac-1")
	require.NoError(t, f.tasks.Create(context.Background(), task))

	return outbound.TaskMessage{
		TaskID:         taskID,
		SessionID:      f.sessionID,
		OrganizationID: f.orgID,
		ResumeRef:      "r1",
		VacancyRef:     "vac-1",
		VacancyText:    "Senior Go engineer",
		ResumeText:     "ten years of Go",
		Current:        1,
		Total:          1,
	}
}

func TestProcessTask_Completes(t *testing.T) {
	f := newProcessorFixture(t, 100)
	f.llm.EnqueueAnalysis(&outbound.LLMAnalysis{
		Result:      map[string]any{"score": 88.0, "verdict": "strong"},
		TokensSpent: 3000,
	})
	message := f.pendingTask(t)

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))

	task, err := f.tasks.FindByID(context.Background(), message.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "completed", task.Status().String())
	require.NotNil(t, task.TokensSpent())
	assert.Equal(t, 3000, *task.TokensSpent())

	// 3000 llm tokens / 200 rate = 15 internal tokens debited.
	balance, err := f.ledger.GetByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.InDelta(t, 85, balance.TokenCount(), 0.001)

	records := f.usage.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 3000, records[0].LLMTokens())
	assert.InDelta(t, 15, records[0].TokensSpent(), 0.001)
	assert.Equal(t, "resume-analysis", records[0].AssistantID())

	events := f.notifier.Events()
	require.Len(t, events, 1)
	event, ok := events[0].Payload.(dto.ProgressEvent)
	require.True(t, ok)
	assert.Equal(t, "completed", event.Status)
	assert.Equal(t, float64(100), event.Percentage)
	assert.Equal(t, "session:"+f.sessionID.String(), events[0].Channel)
}

func TestProcessTask_LLMFailureNoDebit(t *testing.T) {
	f := newProcessorFixture(t, 100)
	f.llm.EnqueueError(errors.New("operation failed after 3 retries: rate limited"))
	message := f.pendingTask(t)

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))

	task, err := f.tasks.FindByID(context.Background(), message.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "failed", task.Status().String())
	assert.Nil(t, task.TokensSpent())
	assert.Contains(t, task.Result()["error"], "rate limited")

	// No debit, no usage record on failure.
	balance, err := f.ledger.GetByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), balance.TokenCount())
	assert.Empty(t, f.usage.Records())
}

func TestProcessTask_InsufficientBalanceBeforeLLM(t *testing.T) {
	f := newProcessorFixture(t, 4)
	message := f.pendingTask(t)

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))

	task, err := f.tasks.FindByID(context.Background(), message.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "failed", task.Status().String())
	assert.Equal(t, "insufficient balance", task.Result()["error"])
	assert.Zero(t, f.llm.CallCount(), "LLM must not be called when balance is insufficient")
}

func TestProcessTask_DebitRejectionAfterLLM(t *testing.T) {
	// Balance passes the admission threshold but cannot cover the
	// actual charge: 10000 llm tokens / 200 = 50 > 6.
	f := newProcessorFixture(t, 6)
	f.llm.EnqueueAnalysis(&outbound.LLMAnalysis{
		Result:      map[string]any{"score": 10.0},
		TokensSpent: 10000,
	})
	message := f.pendingTask(t)

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))

	task, err := f.tasks.FindByID(context.Background(), message.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "failed", task.Status().String())

	balance, err := f.ledger.GetByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.Equal(t, float64(6), balance.TokenCount(), "rejected debit must not change the balance")
}

func TestProcessTask_TerminalRedeliveryIsNoOp(t *testing.T) {
	f := newProcessorFixture(t, 100)
	message := f.pendingTask(t)

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))
	balanceAfterFirst, err := f.ledger.GetByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)

	// Redelivery of the same message.
	require.NoError(t, f.processor.ProcessTask(context.Background(), message))

	balanceAfterSecond, err := f.ledger.GetByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.Equal(t, balanceAfterFirst.TokenCount(), balanceAfterSecond.TokenCount(), "no double charge")
	assert.Equal(t, 1, f.llm.CallCount(), "no second LLM call")
	assert.Len(t, f.usage.Records(), 1)
}

func TestProcessTask_UnknownTaskDropped(t *testing.T) {
	f := newProcessorFixture(t, 100)
	message := outbound.TaskMessage{
		TaskID:         uuid.New(),
		SessionID:      f.sessionID,
		OrganizationID: f.orgID,
		ResumeRef:      "r1",
	}

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))
	assert.Zero(t, f.llm.CallCount())
}

func TestProcessTask_NotifierFailureDoesNotFailTask(t *testing.T) {
	f := newProcessorFixture(t, 100)
	f.notifier.PublishError = errors.New("redis down")
	message := f.pendingTask(t)

	require.NoError(t, f.processor.ProcessTask(context.Background(), message))

	task, err := f.tasks.FindByID(context.Background(), message.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "completed", task.Status().String())
}

func TestNewTaskProcessor_Validation(t *testing.T) {
	pricing, err := config.LoadPricingTable("", 200)
	require.NoError(t, err)

	_, err = NewTaskProcessor(
		TaskProcessorConfig{Pricing: nil},
		mock.NewBalanceLedger(), mock.NewTaskRepository(), mock.NewUsageRecordRepository(),
		mock.NewTransactionScope(), mock.NewLLMClient(), mock.NewNotifier(), nil,
	)
	require.ErrorContains(t, err, "pricing table")

	_, err = NewTaskProcessor(
		TaskProcessorConfig{Pricing: pricing},
		nil, mock.NewTaskRepository(), mock.NewUsageRecordRepository(),
		mock.NewTransactionScope(), mock.NewLLMClient(), mock.NewNotifier(), nil,
	)
	require.ErrorContains(t, err, "collaborators")
}

func TestPromptConversionRounding(t *testing.T) {
	// 1000 / 300 = 3.3333... rounds to 3.33 at the ledger resolution.
	assert.InDelta(t, 3.33, entity.RoundTokens(1000.0/300.0), 0.0001)
}
