package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLBalanceLedger implements the BalanceLedger interface.
// Every mutation is a single UPDATE with arithmetic performed by the
// database, so concurrent debits from parallel workers serialize on the
// row and never lose updates.
type PostgreSQLBalanceLedger struct {
	pool *pgxpool.Pool
	tm   *TransactionManager
}

// NewPostgreSQLBalanceLedger creates a new PostgreSQL balance ledger.
func NewPostgreSQLBalanceLedger(pool *pgxpool.Pool) *PostgreSQLBalanceLedger {
	return &PostgreSQLBalanceLedger{
		pool: pool,
		tm:   NewTransactionManager(pool),
	}
}

const balanceColumns = `id, organization_id, token_count, is_trial, created_at, updated_at`

// Create inserts a new balance row.
func (r *PostgreSQLBalanceLedger) Create(ctx context.Context, balance *entity.Balance) error {
	if balance == nil {
		return ErrInvalidArgument
	}

	query := `
		INSERT INTO balances (id, organization_id, token_count, is_trial, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	qi := GetQueryInterface(ctx, r.pool)
	_, err := qi.Exec(ctx, query,
		balance.ID(),
		balance.OrganizationID(),
		balance.TokenCount(),
		balance.IsTrial(),
		balance.CreatedAt(),
		balance.UpdatedAt(),
	)
	if err != nil {
		return WrapError(err, "create balance")
	}

	return nil
}

// GetByOrganization returns the organization's balance.
func (r *PostgreSQLBalanceLedger) GetByOrganization(ctx context.Context, organizationID uuid.UUID) (*entity.Balance, error) {
	if organizationID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `SELECT ` + balanceColumns + ` FROM balances WHERE organization_id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	return r.scanBalance(qi.QueryRow(ctx, query, organizationID))
}

// Debit atomically subtracts amount and returns the new balance. The
// arithmetic happens in the UPDATE itself; the row may go negative.
func (r *PostgreSQLBalanceLedger) Debit(ctx context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error) {
	query := `
		UPDATE balances
		SET token_count = token_count - $2, updated_at = NOW()
		WHERE organization_id = $1
		RETURNING ` + balanceColumns

	qi := GetQueryInterface(ctx, r.pool)
	return r.scanBalance(qi.QueryRow(ctx, query, organizationID, amount))
}

// DebitIfSufficient subtracts amount only when the current count covers
// it. Zero rows affected means insufficient funds, not a missing row;
// the two cases are told apart with a follow-up existence read.
func (r *PostgreSQLBalanceLedger) DebitIfSufficient(ctx context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error) {
	query := `
		UPDATE balances
		SET token_count = token_count - $2, updated_at = NOW()
		WHERE organization_id = $1 AND token_count >= $2
		RETURNING ` + balanceColumns

	qi := GetQueryInterface(ctx, r.pool)
	balance, err := r.scanBalance(qi.QueryRow(ctx, query, organizationID, amount))
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, domainerrors.ErrBalanceNotFound) {
		return nil, err
	}

	if _, getErr := r.GetByOrganization(ctx, organizationID); getErr != nil {
		return nil, getErr
	}
	return nil, domainerrors.ErrInsufficientBalance
}

// Credit atomically adds amount and returns the new balance.
func (r *PostgreSQLBalanceLedger) Credit(ctx context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error) {
	query := `
		UPDATE balances
		SET token_count = token_count + $2, updated_at = NOW()
		WHERE organization_id = $1
		RETURNING ` + balanceColumns

	qi := GetQueryInterface(ctx, r.pool)
	return r.scanBalance(qi.QueryRow(ctx, query, organizationID, amount))
}

// Transfer debits src and credits dst inside one transaction.
func (r *PostgreSQLBalanceLedger) Transfer(ctx context.Context, srcOrganizationID, dstOrganizationID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %w", ErrInvalidArgument)
	}

	return r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := r.Debit(txCtx, srcOrganizationID, amount); err != nil {
			return fmt.Errorf("transfer debit leg: %w", err)
		}
		if _, err := r.Credit(txCtx, dstOrganizationID, amount); err != nil {
			return fmt.Errorf("transfer credit leg: %w", err)
		}
		return nil
	})
}

// ExpireTrial converts a trial balance to its fixed residual amount.
func (r *PostgreSQLBalanceLedger) ExpireTrial(ctx context.Context, organizationID uuid.UUID, residual float64) (*entity.Balance, error) {
	query := `
		UPDATE balances
		SET token_count = $2, is_trial = FALSE, updated_at = NOW()
		WHERE organization_id = $1 AND is_trial = TRUE
		RETURNING ` + balanceColumns

	qi := GetQueryInterface(ctx, r.pool)
	return r.scanBalance(qi.QueryRow(ctx, query, organizationID, residual))
}

func (r *PostgreSQLBalanceLedger) scanBalance(row pgx.Row) (*entity.Balance, error) {
	var (
		id             uuid.UUID
		organizationID uuid.UUID
		tokenCount     float64
		isTrial        bool
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(&id, &organizationID, &tokenCount, &isTrial, &createdAt, &updatedAt)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, domainerrors.ErrBalanceNotFound
		}
		return nil, WrapError(err, "scan balance")
	}

	return entity.RestoreBalance(id, organizationID, tokenCount, isTrial, createdAt, updatedAt), nil
}
