// Package mock provides in-memory implementations of the outbound
// ports for tests and local development.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
	"resumeflow/internal/domain/valueobject"
)

// BalanceLedger is an in-memory BalanceLedger. All mutations hold one
// mutex, which gives the same serialization guarantee the SQL
// conditional UPDATE gives in production.
type BalanceLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*entity.Balance
}

// NewBalanceLedger creates an empty in-memory ledger.
func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{balances: make(map[uuid.UUID]*entity.Balance)}
}

// Seed installs a balance without Create's uniqueness check.
func (l *BalanceLedger) Seed(balance *entity.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balance.OrganizationID()] = balance
}

func (l *BalanceLedger) GetByOrganization(_ context.Context, organizationID uuid.UUID) (*entity.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[organizationID]
	if !ok {
		return nil, domainerrors.ErrBalanceNotFound
	}
	return balance, nil
}

func (l *BalanceLedger) Create(_ context.Context, balance *entity.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.balances[balance.OrganizationID()]; exists {
		return domainerrors.ErrInvalidInput
	}
	l.balances[balance.OrganizationID()] = balance
	return nil
}

func (l *BalanceLedger) Debit(_ context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.adjust(organizationID, -amount)
}

func (l *BalanceLedger) DebitIfSufficient(_ context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[organizationID]
	if !ok {
		return nil, domainerrors.ErrBalanceNotFound
	}
	if balance.TokenCount() < amount {
		return nil, domainerrors.ErrInsufficientBalance
	}
	return l.adjust(organizationID, -amount)
}

func (l *BalanceLedger) Credit(_ context.Context, organizationID uuid.UUID, amount float64) (*entity.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.adjust(organizationID, amount)
}

func (l *BalanceLedger) Transfer(ctx context.Context, srcOrganizationID, dstOrganizationID uuid.UUID, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[srcOrganizationID]; !ok {
		return domainerrors.ErrBalanceNotFound
	}
	if _, ok := l.balances[dstOrganizationID]; !ok {
		return domainerrors.ErrBalanceNotFound
	}
	if _, err := l.adjust(srcOrganizationID, -amount); err != nil {
		return err
	}
	_, err := l.adjust(dstOrganizationID, amount)
	return err
}

func (l *BalanceLedger) ExpireTrial(_ context.Context, organizationID uuid.UUID, residual float64) (*entity.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[organizationID]
	if !ok {
		return nil, domainerrors.ErrBalanceNotFound
	}
	if !balance.IsTrial() {
		return balance, nil
	}

	updated := entity.RestoreBalance(
		balance.ID(), organizationID, residual, false, balance.CreatedAt(), time.Now(),
	)
	l.balances[organizationID] = updated
	return updated, nil
}

// adjust mutates a balance; caller must hold the mutex.
func (l *BalanceLedger) adjust(organizationID uuid.UUID, delta float64) (*entity.Balance, error) {
	balance, ok := l.balances[organizationID]
	if !ok {
		return nil, domainerrors.ErrBalanceNotFound
	}

	updated := entity.RestoreBalance(
		balance.ID(),
		organizationID,
		entity.RoundTokens(balance.TokenCount()+delta),
		balance.IsTrial(),
		balance.CreatedAt(),
		time.Now(),
	)
	l.balances[organizationID] = updated
	return updated, nil
}

// TaskRepository is an in-memory TaskRepository with the same
// terminal-idempotence semantics as the Postgres implementation.
type TaskRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entity.AnalysisTask
	order []uuid.UUID
}

// NewTaskRepository creates an empty in-memory task repository.
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[uuid.UUID]*entity.AnalysisTask)}
}

func (r *TaskRepository) Create(_ context.Context, task *entity.AnalysisTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID()]; exists {
		return domainerrors.ErrTaskAlreadyExists
	}
	r.tasks[task.ID()] = task
	r.order = append(r.order, task.ID())
	return nil
}

func (r *TaskRepository) Complete(_ context.Context, taskID uuid.UUID, result map[string]any, tokensSpent int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return domainerrors.ErrTaskNotFound
	}
	if task.IsTerminal() {
		return nil
	}
	return task.Complete(result, tokensSpent)
}

func (r *TaskRepository) Fail(_ context.Context, taskID uuid.UUID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return domainerrors.ErrTaskNotFound
	}
	if task.IsTerminal() {
		return nil
	}
	return task.Fail(errorMessage)
}

func (r *TaskRepository) FindByID(_ context.Context, taskID uuid.UUID) (*entity.AnalysisTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return nil, domainerrors.ErrTaskNotFound
	}
	return task, nil
}

func (r *TaskRepository) FindBySession(_ context.Context, sessionID uuid.UUID, offset, limit int) ([]*entity.AnalysisTask, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessionTasks []*entity.AnalysisTask
	for _, id := range r.order {
		task := r.tasks[id]
		if task.SessionID() == sessionID {
			sessionTasks = append(sessionTasks, task)
		}
	}

	total := len(sessionTasks)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return sessionTasks[offset:end], total, nil
}

// CountByStatus returns a session's task counts per status, for test
// assertions.
func (r *TaskRepository) CountByStatus(sessionID uuid.UUID) map[valueobject.TaskStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[valueobject.TaskStatus]int)
	for _, task := range r.tasks {
		if task.SessionID() == sessionID {
			counts[task.Status()]++
		}
	}
	return counts
}

// UsageRecordRepository is an in-memory UsageRecordRepository.
type UsageRecordRepository struct {
	mu      sync.Mutex
	records []*entity.UsageRecord
}

// NewUsageRecordRepository creates an empty in-memory usage ledger.
func NewUsageRecordRepository() *UsageRecordRepository {
	return &UsageRecordRepository{}
}

func (r *UsageRecordRepository) Save(_ context.Context, record *entity.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *UsageRecordRepository) FindByOrganization(_ context.Context, organizationID uuid.UUID, offset, limit int) ([]*entity.UsageRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.UsageRecord
	for _, record := range r.records {
		if record.OrganizationID() == organizationID {
			matched = append(matched, record)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Records returns all saved records, for test assertions.
func (r *UsageRecordRepository) Records() []*entity.UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.UsageRecord, len(r.records))
	copy(out, r.records)
	return out
}

// TransactionScope is a pass-through TransactionScope. The in-memory
// stores are individually atomic, which is enough for unit tests.
type TransactionScope struct{}

// NewTransactionScope creates a pass-through transaction scope.
func NewTransactionScope() *TransactionScope {
	return &TransactionScope{}
}

func (s *TransactionScope) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
