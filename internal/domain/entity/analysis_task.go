package entity

import (
	"time"

	"resumeflow/internal/domain/valueobject"

	"github.com/google/uuid"
)

// AnalysisTask represents one (vacancy, résumé) pairing submitted for
// LLM-based analysis. The task id is minted at submission time and is
// never reused; a retry of a terminal task gets a fresh id.
type AnalysisTask struct {
	id          uuid.UUID
	sessionID   uuid.UUID
	resumeRef   string
	vacancyRef  string
	status      valueobject.TaskStatus
	result      map[string]any
	tokensSpent *int
	createdAt   time.Time
	updatedAt   time.Time
}

// NewAnalysisTask creates a pending task for the given session and references.
func NewAnalysisTask(id, sessionID uuid.UUID, resumeRef, vacancyRef string) *AnalysisTask {
	now := time.Now()
	return &AnalysisTask{
		id:         id,
		sessionID:  sessionID,
		resumeRef:  resumeRef,
		vacancyRef: vacancyRef,
		status:     valueobject.TaskStatusPending,
		createdAt:  now,
		updatedAt:  now,
	}
}

// RestoreAnalysisTask creates an AnalysisTask entity from stored data.
func RestoreAnalysisTask(
	id uuid.UUID,
	sessionID uuid.UUID,
	resumeRef string,
	vacancyRef string,
	status valueobject.TaskStatus,
	result map[string]any,
	tokensSpent *int,
	createdAt time.Time,
	updatedAt time.Time,
) *AnalysisTask {
	return &AnalysisTask{
		id:          id,
		sessionID:   sessionID,
		resumeRef:   resumeRef,
		vacancyRef:  vacancyRef,
		status:      status,
		result:      result,
		tokensSpent: tokensSpent,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the task ID.
func (t *AnalysisTask) ID() uuid.UUID {
	return t.id
}

// SessionID returns the owning session ID.
func (t *AnalysisTask) SessionID() uuid.UUID {
	return t.sessionID
}

// ResumeRef returns the résumé reference.
func (t *AnalysisTask) ResumeRef() string {
	return t.resumeRef
}

// VacancyRef returns the vacancy reference.
func (t *AnalysisTask) VacancyRef() string {
	return t.vacancyRef
}

// Status returns the current task status.
func (t *AnalysisTask) Status() valueobject.TaskStatus {
	return t.status
}

// Result returns the structured analysis result. For failed tasks it
// holds the captured error description under the "error" key.
func (t *AnalysisTask) Result() map[string]any {
	return t.result
}

// TokensSpent returns the LLM-reported token cost, nil until terminal.
func (t *AnalysisTask) TokensSpent() *int {
	return t.tokensSpent
}

// CreatedAt returns the creation timestamp.
func (t *AnalysisTask) CreatedAt() time.Time {
	return t.createdAt
}

// UpdatedAt returns the last update timestamp.
func (t *AnalysisTask) UpdatedAt() time.Time {
	return t.updatedAt
}

// IsTerminal returns true if the task is in a terminal state.
func (t *AnalysisTask) IsTerminal() bool {
	return t.status.IsTerminal()
}

// Complete marks the task as completed with its result and token cost.
func (t *AnalysisTask) Complete(result map[string]any, tokensSpent int) error {
	if !t.status.CanTransitionTo(valueobject.TaskStatusCompleted) {
		return NewDomainError("cannot complete task in current status", "INVALID_STATUS_TRANSITION")
	}

	t.status = valueobject.TaskStatusCompleted
	t.result = result
	t.tokensSpent = &tokensSpent
	t.updatedAt = time.Now()
	return nil
}

// Fail marks the task as failed with the captured error description.
// Token cost stays nil: a failed task never charged the ledger.
func (t *AnalysisTask) Fail(errorMessage string) error {
	if !t.status.CanTransitionTo(valueobject.TaskStatusFailed) {
		return NewDomainError("cannot fail task in current status", "INVALID_STATUS_TRANSITION")
	}

	t.status = valueobject.TaskStatusFailed
	t.result = map[string]any{"error": errorMessage}
	t.updatedAt = time.Now()
	return nil
}

// Equal compares two AnalysisTask entities by identity.
func (t *AnalysisTask) Equal(other *AnalysisTask) bool {
	if other == nil {
		return false
	}
	return t.id == other.id
}
