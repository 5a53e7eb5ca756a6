package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"resumeflow/internal/version"
)

// Metric names following OpenTelemetry semantic conventions.
const (
	TasksProcessedCounterName   = "analysis_tasks_processed_total"
	TaskDurationHistogramName   = "analysis_task_duration_seconds"
	TokensSpentCounterName      = "analysis_tokens_spent_total"
	LLMTokensCounterName        = "analysis_llm_tokens_total"
	DebitRejectionsCounterName  = "analysis_debit_rejections_total"
	ProgressPublishFailuresName = "analysis_progress_publish_failures_total"
)

const meterName = "resumeflow/worker"

// Common attribute keys for consistent labeling.
const (
	AttrOutcome     = "outcome"
	AttrAssistantID = "assistant_id"
)

// TaskMetrics provides OpenTelemetry metrics for the task processor.
type TaskMetrics struct {
	tasksProcessed          metric.Int64Counter
	taskDuration            metric.Float64Histogram
	tokensSpent             metric.Float64Counter
	llmTokens               metric.Int64Counter
	debitRejections         metric.Int64Counter
	progressPublishFailures metric.Int64Counter
}

// NewTaskMetrics creates the task processor instruments on a dedicated
// meter provider with a manual reader.
func NewTaskMetrics() (*TaskMetrics, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", version.ApplicationName),
			attribute.String("service.version", version.Get().Version),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewManualReader()),
	)

	return NewTaskMetricsWithProvider(provider)
}

// NewTaskMetricsWithProvider creates the instruments on a caller-supplied
// meter provider.
func NewTaskMetricsWithProvider(provider metric.MeterProvider) (*TaskMetrics, error) {
	meter := provider.Meter(meterName)

	tasksProcessed, err := meter.Int64Counter(TasksProcessedCounterName,
		metric.WithDescription("Total analysis tasks processed by outcome"))
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(TaskDurationHistogramName,
		metric.WithDescription("End-to-end task processing duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	tokensSpent, err := meter.Float64Counter(TokensSpentCounterName,
		metric.WithDescription("Internal-currency tokens debited for completed tasks"))
	if err != nil {
		return nil, err
	}

	llmTokens, err := meter.Int64Counter(LLMTokensCounterName,
		metric.WithDescription("LLM-reported tokens consumed by completed tasks"))
	if err != nil {
		return nil, err
	}

	debitRejections, err := meter.Int64Counter(DebitRejectionsCounterName,
		metric.WithDescription("Debits rejected for insufficient balance after LLM success"))
	if err != nil {
		return nil, err
	}

	progressPublishFailures, err := meter.Int64Counter(ProgressPublishFailuresName,
		metric.WithDescription("Best-effort progress events that failed to publish"))
	if err != nil {
		return nil, err
	}

	return &TaskMetrics{
		tasksProcessed:          tasksProcessed,
		taskDuration:            taskDuration,
		tokensSpent:             tokensSpent,
		llmTokens:               llmTokens,
		debitRejections:         debitRejections,
		progressPublishFailures: progressPublishFailures,
	}, nil
}

// RecordTask records one finished task with its outcome and duration.
func (m *TaskMetrics) RecordTask(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))
	m.tasksProcessed.Add(ctx, 1, attrs)
	m.taskDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSpend records a successful charge.
func (m *TaskMetrics) RecordSpend(ctx context.Context, assistantID string, llmTokens int, tokensSpent float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrAssistantID, assistantID))
	m.tokensSpent.Add(ctx, tokensSpent, attrs)
	m.llmTokens.Add(ctx, int64(llmTokens), attrs)
}

// RecordDebitRejection records a post-analysis insufficient-balance rejection.
func (m *TaskMetrics) RecordDebitRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.debitRejections.Add(ctx, 1)
}

// RecordProgressPublishFailure records a dropped progress event.
func (m *TaskMetrics) RecordProgressPublishFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.progressPublishFailures.Add(ctx, 1)
}
