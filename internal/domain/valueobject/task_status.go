package valueobject

import "fmt"

// TaskStatus represents the current status of an analysis task.
type TaskStatus string

// Task status constants.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// validTaskStatuses contains all valid task statuses.
var validTaskStatuses = map[TaskStatus]bool{
	TaskStatusPending:   true,
	TaskStatusCompleted: true,
	TaskStatusFailed:    true,
}

// NewTaskStatus creates a new TaskStatus with validation.
func NewTaskStatus(status string) (TaskStatus, error) {
	s := TaskStatus(status)
	if !validTaskStatuses[s] {
		return "", fmt.Errorf("invalid task status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
// Terminal tasks are never resurrected; a retry mints a new task id.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	transitions := map[TaskStatus][]TaskStatus{
		TaskStatusPending: {
			TaskStatusCompleted,
			TaskStatusFailed,
		},
		// Terminal states cannot transition
		TaskStatusCompleted: {},
		TaskStatusFailed:    {},
	}

	validTransitions, exists := transitions[s]
	if !exists {
		return false
	}

	for _, validTarget := range validTransitions {
		if target == validTarget {
			return true
		}
	}
	return false
}

// AllTaskStatuses returns all valid task statuses.
func AllTaskStatuses() []TaskStatus {
	statuses := make([]TaskStatus, 0, len(validTaskStatuses))
	for status := range validTaskStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}
