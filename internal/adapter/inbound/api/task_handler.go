package api

import (
	"fmt"
	"net/http"
	"strconv"

	"resumeflow/internal/application/dto"
	"resumeflow/internal/port/inbound"

	"github.com/google/uuid"
)

// TaskHandler handles task polling and result export requests.
type TaskHandler struct {
	queries      inbound.TaskQueryService
	exports      inbound.ExportService
	errorHandler ErrorHandler
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(queries inbound.TaskQueryService, exports inbound.ExportService, errorHandler ErrorHandler) *TaskHandler {
	return &TaskHandler{
		queries:      queries,
		exports:      exports,
		errorHandler: errorHandler,
	}
}

// ListTasks handles GET /sessions/{session_id}/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid session id: %w", err))
		return
	}

	query := dto.DefaultTaskListQuery()
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid offset %q", raw))
			return
		}
		query.Offset = offset
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid limit %q: must be between 1 and 100", raw))
			return
		}
		query.Limit = limit
	}

	response, err := h.queries.ListBySession(r.Context(), sessionID, query.Offset, query.Limit)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
	}
}

// GetTask handles GET /sessions/{session_id}/tasks/{task_id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid task id: %w", err))
		return
	}

	response, err := h.queries.GetTask(r.Context(), taskID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
	}
}

// ExportTasks handles GET /sessions/{session_id}/tasks/export?format=csv|xlsx.
func (h *TaskHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid session id: %w", err))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		payload     []byte
		contentType string
		filename    string
	)

	switch format {
	case "csv":
		payload, err = h.exports.ExportCSV(r.Context(), sessionID)
		contentType = "text/csv"
		filename = fmt.Sprintf("analyses-%s.csv", sessionID)
	case "xlsx":
		payload, err = h.exports.ExportXLSX(r.Context(), sessionID)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = fmt.Sprintf("analyses-%s.xlsx", sessionID)
	default:
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("unsupported export format %q: must be csv or xlsx", format))
		return
	}

	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		_ = err
	}
}
