package entity

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an append-only ledger entry capturing one successful
// debit. A record exists if and only if the corresponding balance debit
// succeeded; it is written inside the same transaction and never
// mutated afterwards.
type UsageRecord struct {
	id             uuid.UUID
	organizationID uuid.UUID
	assistantID    string
	inputTokens    int
	llmTokens      int
	tokensSpent    float64
	createdAt      time.Time
}

// NewUsageRecord creates a usage record for a completed analysis.
func NewUsageRecord(
	organizationID uuid.UUID,
	assistantID string,
	inputTokens int,
	llmTokens int,
	tokensSpent float64,
) *UsageRecord {
	return &UsageRecord{
		id:             uuid.New(),
		organizationID: organizationID,
		assistantID:    assistantID,
		inputTokens:    inputTokens,
		llmTokens:      llmTokens,
		tokensSpent:    tokensSpent,
		createdAt:      time.Now(),
	}
}

// RestoreUsageRecord creates a UsageRecord entity from stored data.
func RestoreUsageRecord(
	id uuid.UUID,
	organizationID uuid.UUID,
	assistantID string,
	inputTokens int,
	llmTokens int,
	tokensSpent float64,
	createdAt time.Time,
) *UsageRecord {
	return &UsageRecord{
		id:             id,
		organizationID: organizationID,
		assistantID:    assistantID,
		inputTokens:    inputTokens,
		llmTokens:      llmTokens,
		tokensSpent:    tokensSpent,
		createdAt:      createdAt,
	}
}

// ID returns the record ID.
func (u *UsageRecord) ID() uuid.UUID {
	return u.id
}

// OrganizationID returns the charged organization ID.
func (u *UsageRecord) OrganizationID() uuid.UUID {
	return u.organizationID
}

// AssistantID returns the assistant/feature that produced the charge.
func (u *UsageRecord) AssistantID() string {
	return u.assistantID
}

// InputTokens returns the prompt input size.
func (u *UsageRecord) InputTokens() int {
	return u.inputTokens
}

// LLMTokens returns the token cost reported by the LLM.
func (u *UsageRecord) LLMTokens() int {
	return u.llmTokens
}

// TokensSpent returns the internal-currency amount debited.
func (u *UsageRecord) TokensSpent() float64 {
	return u.tokensSpent
}

// CreatedAt returns the record timestamp.
func (u *UsageRecord) CreatedAt() time.Time {
	return u.createdAt
}
