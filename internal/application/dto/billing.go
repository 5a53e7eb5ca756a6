package dto

import (
	"time"

	"github.com/google/uuid"
)

// BalanceResponse represents an organization's balance in API responses.
type BalanceResponse struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	TokenCount     float64   `json:"token_count"`
	IsTrial        bool      `json:"is_trial"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TopUpRequest represents an administrative balance credit.
type TopUpRequest struct {
	Amount float64 `json:"amount"`
}

// UsageRecordResponse represents one usage ledger entry.
type UsageRecordResponse struct {
	ID          uuid.UUID `json:"id"`
	AssistantID string    `json:"assistant_id"`
	InputTokens int       `json:"input_tokens"`
	LLMTokens   int       `json:"llm_tokens"`
	TokensSpent float64   `json:"tokens_spent"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsageListResponse represents a page of usage records.
type UsageListResponse struct {
	Records    []UsageRecordResponse `json:"records"`
	Pagination PaginationResponse    `json:"pagination"`
}
