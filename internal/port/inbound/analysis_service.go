package inbound

import (
	"context"

	"resumeflow/internal/application/dto"

	"github.com/google/uuid"
)

// AnalysisService defines the inbound port for submitting analysis
// batches.
type AnalysisService interface {
	// SubmitBatch validates affordability, resolves résumé texts,
	// creates one pending task per resolvable résumé and dispatches the
	// work. It returns immediately with a manifest of dispatched vs
	// skipped items; individual outcomes arrive later through the task
	// query surface or progress events.
	SubmitBatch(ctx context.Context, request dto.SubmitBatchRequest) (*dto.BatchManifest, error)
}

// TaskQueryService defines the inbound port for polling task outcomes.
type TaskQueryService interface {
	GetTask(ctx context.Context, taskID uuid.UUID) (*dto.TaskResponse, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, offset, limit int) (*dto.TaskListResponse, error)
}

// ExportService renders completed analysis results in a flat tabular
// format with the fixed export column schema.
type ExportService interface {
	ExportCSV(ctx context.Context, sessionID uuid.UUID) ([]byte, error)
	ExportXLSX(ctx context.Context, sessionID uuid.UUID) ([]byte, error)
}

// BillingService exposes ledger reads and administrative mutations.
type BillingService interface {
	GetBalance(ctx context.Context, organizationID uuid.UUID) (*dto.BalanceResponse, error)
	TopUp(ctx context.Context, organizationID uuid.UUID, amount float64) (*dto.BalanceResponse, error)
	ListUsage(ctx context.Context, organizationID uuid.UUID, offset, limit int) (*dto.UsageListResponse, error)
}
