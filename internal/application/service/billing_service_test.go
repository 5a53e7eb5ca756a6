package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/adapter/outbound/mock"
	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
)

func TestBillingService_GetBalance(t *testing.T) {
	ledger := mock.NewBalanceLedger()
	orgID := uuid.New()
	ledger.Seed(entity.NewBalance(orgID, 42.5, true))

	svc := NewDefaultBillingService(ledger, mock.NewUsageRecordRepository())

	balance, err := svc.GetBalance(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 42.5, balance.TokenCount)
	assert.True(t, balance.IsTrial)

	_, err = svc.GetBalance(context.Background(), uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrBalanceNotFound)
}

func TestBillingService_TopUp(t *testing.T) {
	ledger := mock.NewBalanceLedger()
	orgID := uuid.New()
	ledger.Seed(entity.NewBalance(orgID, 10, false))

	svc := NewDefaultBillingService(ledger, mock.NewUsageRecordRepository())

	balance, err := svc.TopUp(context.Background(), orgID, 90.555)
	require.NoError(t, err)
	assert.Equal(t, 100.56, balance.TokenCount)

	_, err = svc.TopUp(context.Background(), orgID, 0)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = svc.TopUp(context.Background(), orgID, -5)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestBillingService_ListUsage(t *testing.T) {
	ledger := mock.NewBalanceLedger()
	usage := mock.NewUsageRecordRepository()
	orgID := uuid.New()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, usage.Save(ctx, entity.NewUsageRecord(orgID, "resume-analysis", 500, 1500, 7.5)))
	}
	require.NoError(t, usage.Save(ctx, entity.NewUsageRecord(uuid.New(), "resume-analysis", 100, 300, 1.5)))

	svc := NewDefaultBillingService(ledger, usage)

	list, err := svc.ListUsage(ctx, orgID, 0, 2)
	require.NoError(t, err)
	assert.Len(t, list.Records, 2)
	assert.Equal(t, 3, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.Limit)
	assert.Equal(t, "resume-analysis", list.Records[0].AssistantID)
	assert.Equal(t, 7.5, list.Records[0].TokensSpent)
}

// Concurrent conditional debits must never overspend: the sum of
// successful debits stays within the starting balance.
func TestConcurrentDebits_SumExactly(t *testing.T) {
	ledger := mock.NewBalanceLedger()
	orgID := uuid.New()
	ledger.Seed(entity.NewBalance(orgID, 100, false))

	const workers = 50
	const amount = 3.0

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.DebitIfSufficient(context.Background(), orgID, amount); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 100 / 3 = 33 full debits fit.
	assert.Equal(t, 33, succeeded)

	balance, err := ledger.GetByOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, balance.TokenCount(), 0.001)
	assert.GreaterOrEqual(t, balance.TokenCount(), 0.0)
}
