package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
	"resumeflow/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLTaskRepository implements the TaskRepository interface.
// Terminal transitions are guarded in SQL: Complete and Fail update only
// rows still in pending, so a duplicate delivery after a terminal state
// affects zero rows and is reported as a no-op.
type PostgreSQLTaskRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLTaskRepository creates a new PostgreSQL task repository.
func NewPostgreSQLTaskRepository(pool *pgxpool.Pool) *PostgreSQLTaskRepository {
	return &PostgreSQLTaskRepository{
		pool: pool,
	}
}

// Create inserts a pending task.
func (r *PostgreSQLTaskRepository) Create(ctx context.Context, task *entity.AnalysisTask) error {
	if task == nil {
		return ErrInvalidArgument
	}

	resultJSON, err := marshalResult(task.Result())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_tasks (
			id, session_id, resume_ref, vacancy_ref, status,
			result, tokens_spent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	qi := GetQueryInterface(ctx, r.pool)
	_, err = qi.Exec(ctx, query,
		task.ID(),
		task.SessionID(),
		task.ResumeRef(),
		task.VacancyRef(),
		task.Status().String(),
		resultJSON,
		task.TokensSpent(),
		task.CreatedAt(),
		task.UpdatedAt(),
	)
	if err != nil {
		if IsUniqueViolationError(err) {
			return domainerrors.ErrTaskAlreadyExists
		}
		return WrapError(err, "create analysis task")
	}

	return nil
}

// Complete transitions pending → completed with the result and cost.
func (r *PostgreSQLTaskRepository) Complete(ctx context.Context, taskID uuid.UUID, result map[string]any, tokensSpent int) error {
	resultJSON, err := marshalResult(result)
	if err != nil {
		return err
	}

	query := `
		UPDATE analysis_tasks
		SET status = $2, result = $3, tokens_spent = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query,
		taskID,
		valueobject.TaskStatusCompleted.String(),
		resultJSON,
		tokensSpent,
		valueobject.TaskStatusPending.String(),
	)
	if err != nil {
		return WrapError(err, "complete analysis task")
	}

	// Zero rows: either unknown id or already terminal. Terminal is a
	// no-op; unknown id is an error.
	if tag.RowsAffected() == 0 {
		return r.classifyZeroRowUpdate(ctx, taskID)
	}

	return nil
}

// Fail transitions pending → failed with the captured error description.
func (r *PostgreSQLTaskRepository) Fail(ctx context.Context, taskID uuid.UUID, errorMessage string) error {
	resultJSON, err := marshalResult(map[string]any{"error": errorMessage})
	if err != nil {
		return err
	}

	query := `
		UPDATE analysis_tasks
		SET status = $2, result = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query,
		taskID,
		valueobject.TaskStatusFailed.String(),
		resultJSON,
		valueobject.TaskStatusPending.String(),
	)
	if err != nil {
		return WrapError(err, "fail analysis task")
	}

	if tag.RowsAffected() == 0 {
		return r.classifyZeroRowUpdate(ctx, taskID)
	}

	return nil
}

// classifyZeroRowUpdate distinguishes an already-terminal task (no-op)
// from a missing one.
func (r *PostgreSQLTaskRepository) classifyZeroRowUpdate(ctx context.Context, taskID uuid.UUID) error {
	task, err := r.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		return nil
	}
	return fmt.Errorf("task %s not updated: %w", taskID, ErrConstraintViolation)
}

// FindByID finds an analysis task by its ID.
func (r *PostgreSQLTaskRepository) FindByID(ctx context.Context, taskID uuid.UUID) (*entity.AnalysisTask, error) {
	if taskID == uuid.Nil {
		return nil, ErrInvalidArgument
	}

	query := `
		SELECT id, session_id, resume_ref, vacancy_ref, status,
			   result, tokens_spent, created_at, updated_at
		FROM analysis_tasks
		WHERE id = $1`

	qi := GetQueryInterface(ctx, r.pool)
	row := qi.QueryRow(ctx, query, taskID)

	task, err := scanTask(row.Scan)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, domainerrors.ErrTaskNotFound
		}
		return nil, WrapError(err, "find analysis task by ID")
	}

	return task, nil
}

// FindBySession returns a page of the session's tasks ordered by
// creation time, plus the total count.
func (r *PostgreSQLTaskRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, offset, limit int) ([]*entity.AnalysisTask, int, error) {
	if sessionID == uuid.Nil {
		return nil, 0, ErrInvalidArgument
	}
	if limit <= 0 || offset < 0 {
		return nil, 0, ErrInvalidArgument
	}

	qi := GetQueryInterface(ctx, r.pool)

	var total int
	countQuery := `SELECT COUNT(*) FROM analysis_tasks WHERE session_id = $1`
	if err := qi.QueryRow(ctx, countQuery, sessionID).Scan(&total); err != nil {
		return nil, 0, WrapError(err, "count session tasks")
	}

	query := `
		SELECT id, session_id, resume_ref, vacancy_ref, status,
			   result, tokens_spent, created_at, updated_at
		FROM analysis_tasks
		WHERE session_id = $1
		ORDER BY created_at, id
		OFFSET $2 LIMIT $3`

	rows, err := qi.Query(ctx, query, sessionID, offset, limit)
	if err != nil {
		return nil, 0, WrapError(err, "list session tasks")
	}
	defer rows.Close()

	var tasks []*entity.AnalysisTask
	for rows.Next() {
		task, scanErr := scanTask(rows.Scan)
		if scanErr != nil {
			return nil, 0, WrapError(scanErr, "scan session task")
		}
		tasks = append(tasks, task)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, WrapError(rowsErr, "iterate session tasks")
	}

	return tasks, total, nil
}

func scanTask(scan func(dest ...any) error) (*entity.AnalysisTask, error) {
	var (
		id          uuid.UUID
		sessionID   uuid.UUID
		resumeRef   string
		vacancyRef  string
		statusStr   string
		resultJSON  []byte
		tokensSpent *int
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := scan(&id, &sessionID, &resumeRef, &vacancyRef, &statusStr,
		&resultJSON, &tokensSpent, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	status, err := valueobject.NewTaskStatus(statusStr)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal task result: %w", err)
		}
	}

	return entity.RestoreAnalysisTask(id, sessionID, resumeRef, vacancyRef,
		status, result, tokensSpent, createdAt, updatedAt), nil
}

func marshalResult(result map[string]any) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal task result: %w", err)
	}
	return data, nil
}
