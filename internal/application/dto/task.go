package dto

import (
	"time"

	"github.com/google/uuid"
)

// TaskResponse represents one analysis task in API responses.
type TaskResponse struct {
	ID          uuid.UUID      `json:"id"`
	SessionID   uuid.UUID      `json:"session_id"`
	ResumeRef   string         `json:"resume_ref"`
	VacancyRef  string         `json:"vacancy_ref"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result"`
	TokensSpent *int           `json:"tokens_spent"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TaskListResponse represents a page of a session's tasks.
type TaskListResponse struct {
	Tasks      []TaskResponse     `json:"tasks"`
	Pagination PaginationResponse `json:"pagination"`
}

// PaginationResponse carries paging metadata for list responses.
type PaginationResponse struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// TaskListQuery represents query parameters for listing tasks.
type TaskListQuery struct {
	Offset int `form:"offset" validate:"omitempty,min=0"`
	Limit  int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// DefaultTaskListQuery returns default values for task list queries.
func DefaultTaskListQuery() TaskListQuery {
	return TaskListQuery{
		Offset: 0,
		Limit:  20,
	}
}
