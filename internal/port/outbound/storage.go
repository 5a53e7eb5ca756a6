package outbound

import (
	"context"

	"resumeflow/internal/domain/entity"

	"github.com/google/uuid"
)

// BalanceLedger defines the outbound port for the per-organization token
// ledger. All mutations are single atomic read-modify-write statements at
// the storage layer; callers never read-then-write across a suspension
// point.
type BalanceLedger interface {
	// GetByOrganization returns the organization's balance, or
	// domain.ErrBalanceNotFound if no row exists.
	GetByOrganization(ctx context.Context, organizationID uuid.UUID) (*entity.Balance, error)

	// Create inserts a new balance row. Exactly one balance may exist
	// per organization.
	Create(ctx context.Context, balance *entity.Balance) error

	// Debit atomically subtracts amount and returns the new balance.
	// It does not enforce non-negativity; administrative adjustments may
	// drive a balance negative.
	Debit(ctx context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error)

	// DebitIfSufficient atomically subtracts amount only when the
	// current token count covers it, returning
	// domain.ErrInsufficientBalance when it does not. Workers use this
	// form so concurrent spending serializes at the storage layer.
	DebitIfSufficient(ctx context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error)

	// Credit atomically adds amount and returns the new balance.
	Credit(ctx context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error)

	// Transfer debits src and credits dst inside one database
	// transaction; a failed credit leg rolls the debit back.
	Transfer(ctx context.Context, srcOrganizationID, dstOrganizationID uuid.UUID, amount float64) error

	// ExpireTrial converts a trial balance to a fixed residual amount.
	// Called by the external trial-expiry scheduler.
	ExpireTrial(ctx context.Context, organizationID uuid.UUID, residual float64) (*entity.Balance, error)
}

// TaskRepository defines the outbound port for analysis task persistence.
// Terminal transitions are guarded in storage: Complete and Fail only
// touch rows still in pending, so duplicate delivery of a completion or
// failure signal is a no-op.
type TaskRepository interface {
	// Create inserts a pending task, returning
	// domain.ErrTaskAlreadyExists for a duplicate task id.
	Create(ctx context.Context, task *entity.AnalysisTask) error

	// Complete transitions pending → completed, storing the structured
	// result and LLM-reported token cost. No-ops on terminal tasks.
	Complete(ctx context.Context, taskID uuid.UUID, result map[string]any, tokensSpent int) error

	// Fail transitions pending → failed with the captured error
	// description; tokens_spent stays null. No-ops on terminal tasks.
	Fail(ctx context.Context, taskID uuid.UUID, errorMessage string) error

	FindByID(ctx context.Context, taskID uuid.UUID) (*entity.AnalysisTask, error)

	// FindBySession returns a page of the session's tasks ordered by
	// creation time, plus the total count.
	FindBySession(ctx context.Context, sessionID uuid.UUID, offset, limit int) ([]*entity.AnalysisTask, int, error)
}

// UsageRecordRepository defines the outbound port for the append-only
// usage ledger.
type UsageRecordRepository interface {
	Save(ctx context.Context, record *entity.UsageRecord) error
	FindByOrganization(ctx context.Context, organizationID uuid.UUID, offset, limit int) ([]*entity.UsageRecord, int, error)
}

// TransactionScope runs a function inside one database transaction.
// Repositories called within fn observe the transaction through ctx.
type TransactionScope interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
