package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"resumeflow/internal/application/dto"
	"resumeflow/internal/port/inbound"

	"github.com/google/uuid"
)

// AnalysisHandler handles batch submission requests.
type AnalysisHandler struct {
	service      inbound.AnalysisService
	errorHandler ErrorHandler
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(service inbound.AnalysisService, errorHandler ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		errorHandler: errorHandler,
	}
}

// SubmitBatch handles POST /organizations/{org_id}/sessions/{session_id}/analyses.
// It answers 202 Accepted with a manifest: batches run asynchronously
// and outcomes arrive through the task query surface.
func (h *AnalysisHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid organization id: %w", err))
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid session id: %w", err))
		return
	}

	var request dto.SubmitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}

	request.OrganizationID = orgID
	request.SessionID = sessionID

	manifest, err := h.service.SubmitBatch(r.Context(), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, manifest); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
	}
}
