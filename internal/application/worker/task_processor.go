// Package worker contains the task processing engine behind the queue
// consumer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/config"
	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
	"resumeflow/internal/port/outbound"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeDuplicate = "duplicate"

	systemPrompt = "You are an expert technical recruiter. Compare the resume " +
		"against the vacancy and answer with a JSON object containing " +
		"\"score\" (0-100), \"verdict\" and \"summary\"."
)

// TaskProcessorConfig tunes billing for the processor.
type TaskProcessorConfig struct {
	// MinimumBalance is re-checked before each task's LLM call.
	MinimumBalance float64
	// AssistantID labels usage records and selects the pricing entry.
	AssistantID string
	// Pricing converts LLM tokens to the internal currency.
	Pricing *config.PricingTable
}

// TaskProcessor implements the worker side of the pipeline: one message
// in, one terminal task state out. Every failure path ends in a
// Fail transition rather than an error return, so a broken résumé or an
// exhausted LLM budget never blocks the rest of the batch; only
// infrastructure errors propagate for queue redelivery.
type TaskProcessor struct {
	config  TaskProcessorConfig
	ledger  outbound.BalanceLedger
	tasks   outbound.TaskRepository
	usage   outbound.UsageRecordRepository
	tx      outbound.TransactionScope
	llm     outbound.LLMClient
	notify  outbound.Notifier
	metrics *TaskMetrics
}

// NewTaskProcessor creates the task processor. metrics may be nil.
func NewTaskProcessor(
	cfg TaskProcessorConfig,
	ledger outbound.BalanceLedger,
	tasks outbound.TaskRepository,
	usage outbound.UsageRecordRepository,
	tx outbound.TransactionScope,
	llm outbound.LLMClient,
	notify outbound.Notifier,
	metrics *TaskMetrics,
) (*TaskProcessor, error) {
	if cfg.MinimumBalance <= 0 {
		cfg.MinimumBalance = 5
	}
	if cfg.AssistantID == "" {
		cfg.AssistantID = "resume-analysis"
	}
	if cfg.Pricing == nil {
		return nil, errors.New("pricing table cannot be nil")
	}
	if ledger == nil || tasks == nil || usage == nil || tx == nil || llm == nil {
		return nil, errors.New("all collaborators are required")
	}

	return &TaskProcessor{
		config:  cfg,
		ledger:  ledger,
		tasks:   tasks,
		usage:   usage,
		tx:      tx,
		llm:     llm,
		notify:  notify,
		metrics: metrics,
	}, nil
}

// ProcessTask drives one task to a terminal state.
func (p *TaskProcessor) ProcessTask(ctx context.Context, message outbound.TaskMessage) error {
	start := time.Now()

	task, err := p.tasks.FindByID(ctx, message.TaskID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrTaskNotFound) {
			slogger.Warn(ctx, "Dropping message for unknown task", slogger.Field("task_id", message.TaskID.String()))
			return nil
		}
		return fmt.Errorf("failed to load task %s: %w", message.TaskID, err)
	}

	// At-least-once delivery: a redelivered terminal task is a no-op.
	if task.IsTerminal() {
		p.metrics.RecordTask(ctx, outcomeDuplicate, time.Since(start))
		return nil
	}

	balance, err := p.ledger.GetByOrganization(ctx, message.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to load balance for organization %s: %w", message.OrganizationID, err)
	}
	if !balance.CanAfford(p.config.MinimumBalance) {
		return p.failTask(ctx, message, "insufficient balance", start)
	}

	analysis, err := p.llm.Analyze(ctx, buildPrompt(message))
	if err != nil {
		slogger.Error(ctx, "LLM analysis failed", slogger.Fields2(
			"task_id", message.TaskID.String(),
			"error", err.Error(),
		))
		return p.failTask(ctx, message, err.Error(), start)
	}

	tokensSpent := entity.RoundTokens(float64(analysis.TokensSpent) / p.config.Pricing.RateFor(p.config.AssistantID))

	// Usage record and debit commit or roll back together. The
	// conditional debit is the authoritative overspend guard; the
	// earlier CanAfford check only filtered the obvious cases.
	err = p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		record := entity.NewUsageRecord(
			message.OrganizationID,
			p.config.AssistantID,
			promptSize(message),
			analysis.TokensSpent,
			tokensSpent,
		)
		if saveErr := p.usage.Save(txCtx, record); saveErr != nil {
			return fmt.Errorf("failed to save usage record: %w", saveErr)
		}
		if _, debitErr := p.ledger.DebitIfSufficient(txCtx, message.OrganizationID, tokensSpent); debitErr != nil {
			return debitErr
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInsufficientBalance) {
			p.metrics.RecordDebitRejection(ctx)
			return p.failTask(ctx, message, "insufficient balance", start)
		}
		return fmt.Errorf("failed to charge for task %s: %w", message.TaskID, err)
	}

	if err := p.tasks.Complete(ctx, message.TaskID, analysis.Result, analysis.TokensSpent); err != nil {
		// The charge is committed; redelivery hits the terminal guard
		// or retries the completion, never double-charges.
		return fmt.Errorf("failed to complete task %s: %w", message.TaskID, err)
	}

	p.metrics.RecordTask(ctx, outcomeCompleted, time.Since(start))
	p.metrics.RecordSpend(ctx, p.config.AssistantID, analysis.TokensSpent, tokensSpent)
	p.publishProgress(ctx, message, outcomeCompleted)

	slogger.Info(ctx, "Task completed", slogger.Fields3(
		"task_id", message.TaskID.String(),
		"llm_tokens", analysis.TokensSpent,
		"tokens_spent", tokensSpent,
	))

	return nil
}

// failTask transitions the task to failed and reports progress. The
// ledger is never touched on this path.
func (p *TaskProcessor) failTask(ctx context.Context, message outbound.TaskMessage, reason string, start time.Time) error {
	if err := p.tasks.Fail(ctx, message.TaskID, reason); err != nil {
		return fmt.Errorf("failed to fail task %s: %w", message.TaskID, err)
	}

	p.metrics.RecordTask(ctx, outcomeFailed, time.Since(start))
	p.publishProgress(ctx, message, outcomeFailed)

	slogger.Info(ctx, "Task failed", slogger.Fields2(
		"task_id", message.TaskID.String(),
		"reason", reason,
	))

	return nil
}

func (p *TaskProcessor) publishProgress(ctx context.Context, message outbound.TaskMessage, status string) {
	if p.notify == nil {
		return
	}

	event := dto.ProgressEvent{
		TaskID:    message.TaskID,
		ResumeRef: message.ResumeRef,
		Status:    status,
		Current:   message.Current,
		Total:     message.Total,
	}
	if message.Total > 0 {
		event.Percentage = float64(message.Current) / float64(message.Total) * 100
	}

	channel := dto.SessionChannel(message.SessionID)
	if err := p.notify.Publish(ctx, channel, event); err != nil {
		p.metrics.RecordProgressPublishFailure(ctx)
		slogger.Warn(ctx, "Failed to publish progress event", slogger.Fields2(
			"channel", channel,
			"error", err.Error(),
		))
	}
}

func buildPrompt(message outbound.TaskMessage) []outbound.LLMMessage {
	vacancy := message.VacancyText
	if vacancy == "" {
		vacancy = message.VacancyRef
	}

	return []outbound.LLMMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Vacancy:\n%s\n\nResume:\n%s", vacancy, message.ResumeText)},
	}
}

// promptSize approximates the input size in tokens for the usage
// record: serialized character count over four, the usual rough bound
// for latin text.
func promptSize(message outbound.TaskMessage) int {
	data, err := json.Marshal(buildPrompt(message))
	if err != nil {
		return 0
	}
	return len(data) / 4
}
