package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
	"resumeflow/internal/port/outbound"
)

// DefaultBillingService implements BillingService over the ledger and
// usage repository.
type DefaultBillingService struct {
	ledger outbound.BalanceLedger
	usage  outbound.UsageRecordRepository
}

// NewDefaultBillingService creates the billing service.
func NewDefaultBillingService(ledger outbound.BalanceLedger, usage outbound.UsageRecordRepository) *DefaultBillingService {
	return &DefaultBillingService{ledger: ledger, usage: usage}
}

// GetBalance returns the organization's current balance.
func (s *DefaultBillingService) GetBalance(ctx context.Context, organizationID uuid.UUID) (*dto.BalanceResponse, error) {
	balance, err := s.ledger.GetByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return balanceToResponse(balance), nil
}

// TopUp credits the organization's balance administratively.
func (s *DefaultBillingService) TopUp(ctx context.Context, organizationID uuid.UUID, amount float64) (*dto.BalanceResponse, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: top-up amount must be positive", domainerrors.ErrInvalidInput)
	}

	balance, err := s.ledger.Credit(ctx, organizationID, entity.RoundTokens(amount))
	if err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	slogger.Info(ctx, "Balance topped up", slogger.Fields2(
		"organization_id", organizationID.String(),
		"amount", amount,
	))

	return balanceToResponse(balance), nil
}

// ListUsage returns a page of the organization's usage records, newest
// first.
func (s *DefaultBillingService) ListUsage(ctx context.Context, organizationID uuid.UUID, offset, limit int) (*dto.UsageListResponse, error) {
	query := dto.DefaultTaskListQuery()
	if offset > 0 {
		query.Offset = offset
	}
	if limit > 0 {
		query.Limit = limit
	}

	records, total, err := s.usage.FindByOrganization(ctx, organizationID, query.Offset, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	responses := make([]dto.UsageRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.UsageRecordResponse{
			ID:          record.ID(),
			AssistantID: record.AssistantID(),
			InputTokens: record.InputTokens(),
			LLMTokens:   record.LLMTokens(),
			TokensSpent: record.TokensSpent(),
			CreatedAt:   record.CreatedAt(),
		})
	}

	return &dto.UsageListResponse{
		Records: responses,
		Pagination: dto.PaginationResponse{
			Offset: query.Offset,
			Limit:  query.Limit,
			Total:  total,
		},
	}, nil
}

func balanceToResponse(balance *entity.Balance) *dto.BalanceResponse {
	return &dto.BalanceResponse{
		OrganizationID: balance.OrganizationID(),
		TokenCount:     balance.TokenCount(),
		IsTrial:        balance.IsTrial(),
		UpdatedAt:      balance.UpdatedAt(),
	}
}
