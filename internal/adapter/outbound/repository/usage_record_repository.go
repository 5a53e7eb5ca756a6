package repository

import (
	"context"
	"time"

	"resumeflow/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLUsageRecordRepository implements the UsageRecordRepository
// interface. Usage records are append-only; there is no update path.
type PostgreSQLUsageRecordRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLUsageRecordRepository creates a new PostgreSQL usage record repository.
func NewPostgreSQLUsageRecordRepository(pool *pgxpool.Pool) *PostgreSQLUsageRecordRepository {
	return &PostgreSQLUsageRecordRepository{
		pool: pool,
	}
}

// Save appends a usage record. Called inside the same transaction as
// the balance debit it documents.
func (r *PostgreSQLUsageRecordRepository) Save(ctx context.Context, record *entity.UsageRecord) error {
	if record == nil {
		return ErrInvalidArgument
	}

	query := `
		INSERT INTO usage_records (
			id, organization_id, assistant_id, input_tokens,
			llm_tokens, tokens_spent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	qi := GetQueryInterface(ctx, r.pool)
	_, err := qi.Exec(ctx, query,
		record.ID(),
		record.OrganizationID(),
		record.AssistantID(),
		record.InputTokens(),
		record.LLMTokens(),
		record.TokensSpent(),
		record.CreatedAt(),
	)
	if err != nil {
		return WrapError(err, "save usage record")
	}

	return nil
}

// FindByOrganization returns a page of the organization's usage records,
// newest first, plus the total count.
func (r *PostgreSQLUsageRecordRepository) FindByOrganization(ctx context.Context, organizationID uuid.UUID, offset, limit int) ([]*entity.UsageRecord, int, error) {
	if organizationID == uuid.Nil {
		return nil, 0, ErrInvalidArgument
	}
	if limit <= 0 || offset < 0 {
		return nil, 0, ErrInvalidArgument
	}

	qi := GetQueryInterface(ctx, r.pool)

	var total int
	countQuery := `SELECT COUNT(*) FROM usage_records WHERE organization_id = $1`
	if err := qi.QueryRow(ctx, countQuery, organizationID).Scan(&total); err != nil {
		return nil, 0, WrapError(err, "count usage records")
	}

	query := `
		SELECT id, organization_id, assistant_id, input_tokens,
			   llm_tokens, tokens_spent, created_at
		FROM usage_records
		WHERE organization_id = $1
		ORDER BY created_at DESC, id
		OFFSET $2 LIMIT $3`

	rows, err := qi.Query(ctx, query, organizationID, offset, limit)
	if err != nil {
		return nil, 0, WrapError(err, "list usage records")
	}
	defer rows.Close()

	var records []*entity.UsageRecord
	for rows.Next() {
		var (
			id          uuid.UUID
			orgID       uuid.UUID
			assistantID string
			inputTokens int
			llmTokens   int
			tokensSpent float64
			createdAt   time.Time
		)
		if scanErr := rows.Scan(&id, &orgID, &assistantID, &inputTokens,
			&llmTokens, &tokensSpent, &createdAt); scanErr != nil {
			return nil, 0, WrapError(scanErr, "scan usage record")
		}
		records = append(records, entity.RestoreUsageRecord(
			id, orgID, assistantID, inputTokens, llmTokens, tokensSpent, createdAt))
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, WrapError(rowsErr, "iterate usage records")
	}

	return records, total, nil
}
