package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"resumeflow/internal/application/dto"
	"resumeflow/internal/port/inbound"

	"github.com/google/uuid"
)

// BillingHandler handles balance and usage ledger requests.
type BillingHandler struct {
	service      inbound.BillingService
	errorHandler ErrorHandler
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(service inbound.BillingService, errorHandler ErrorHandler) *BillingHandler {
	return &BillingHandler{
		service:      service,
		errorHandler: errorHandler,
	}
}

// GetBalance handles GET /organizations/{org_id}/balance.
func (h *BillingHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid organization id: %w", err))
		return
	}

	response, err := h.service.GetBalance(r.Context(), orgID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
	}
}

// TopUp handles POST /organizations/{org_id}/balance/topup.
func (h *BillingHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid organization id: %w", err))
		return
	}

	var request dto.TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}

	response, err := h.service.TopUp(r.Context(), orgID, request.Amount)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
	}
}

// ListUsage handles GET /organizations/{org_id}/usage.
func (h *BillingHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid organization id: %w", err))
		return
	}

	offset := 0
	limit := 20
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid offset %q", raw))
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			h.errorHandler.HandleValidationError(w, r, fmt.Errorf("invalid limit %q: must be between 1 and 100", raw))
			return
		}
	}

	response, err := h.service.ListUsage(r.Context(), orgID, offset, limit)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
	}
}
