package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"resumeflow/internal/application/dto"
	"resumeflow/internal/domain/entity"
	"resumeflow/internal/port/outbound"
)

// DefaultTaskQueryService implements TaskQueryService over the task
// repository.
type DefaultTaskQueryService struct {
	tasks outbound.TaskRepository
}

// NewDefaultTaskQueryService creates the task query service.
func NewDefaultTaskQueryService(tasks outbound.TaskRepository) *DefaultTaskQueryService {
	return &DefaultTaskQueryService{tasks: tasks}
}

// GetTask returns one task by id.
func (s *DefaultTaskQueryService) GetTask(ctx context.Context, taskID uuid.UUID) (*dto.TaskResponse, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task %s: %w", taskID, err)
	}

	response := taskToResponse(task)
	return &response, nil
}

// ListBySession returns a page of a session's tasks with paging metadata.
func (s *DefaultTaskQueryService) ListBySession(ctx context.Context, sessionID uuid.UUID, offset, limit int) (*dto.TaskListResponse, error) {
	query := dto.DefaultTaskListQuery()
	if offset > 0 {
		query.Offset = offset
	}
	if limit > 0 {
		query.Limit = limit
	}

	tasks, total, err := s.tasks.FindBySession(ctx, sessionID, query.Offset, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for session %s: %w", sessionID, err)
	}

	responses := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskToResponse(task))
	}

	return &dto.TaskListResponse{
		Tasks: responses,
		Pagination: dto.PaginationResponse{
			Offset: query.Offset,
			Limit:  query.Limit,
			Total:  total,
		},
	}, nil
}

func taskToResponse(task *entity.AnalysisTask) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          task.ID(),
		SessionID:   task.SessionID(),
		ResumeRef:   task.ResumeRef(),
		VacancyRef:  task.VacancyRef(),
		Status:      task.Status().String(),
		Result:      task.Result(),
		TokensSpent: task.TokensSpent(),
		CreatedAt:   task.CreatedAt(),
		UpdatedAt:   task.UpdatedAt(),
	}
}
