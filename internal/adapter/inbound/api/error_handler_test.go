package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"resumeflow/internal/application/dto"
	domainerrors "resumeflow/internal/domain/errors/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleServiceError_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   dto.ErrorCode
	}{
		{"balance not found", domainerrors.ErrBalanceNotFound, http.StatusNotFound, dto.ErrorCodeBalanceNotFound},
		{"insufficient balance", domainerrors.ErrInsufficientBalance, http.StatusPaymentRequired, dto.ErrorCodeInsufficientBalance},
		{"task not found", domainerrors.ErrTaskNotFound, http.StatusNotFound, dto.ErrorCodeTaskNotFound},
		{"task exists", domainerrors.ErrTaskAlreadyExists, http.StatusConflict, dto.ErrorCodeTaskExists},
		{"invalid input", domainerrors.ErrInvalidInput, http.StatusBadRequest, dto.ErrorCodeInvalidRequest},
		{"resume unavailable", domainerrors.ErrResumeUnavailable, http.StatusBadGateway, dto.ErrorCodeServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError, dto.ErrorCodeInternalError},
	}

	handler := NewDefaultErrorHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/test", nil)

			handler.HandleServiceError(recorder, request, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			var response dto.ErrorResponse
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
			assert.Equal(t, string(tt.wantCode), response.Error)
		})
	}
}

func TestHandleServiceError_MapsWrappedErrors(t *testing.T) {
	handler := NewDefaultErrorHandler()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/test", nil)

	wrapped := fmt.Errorf("loading ledger: %w", domainerrors.ErrBalanceNotFound)
	handler.HandleServiceError(recorder, request, wrapped)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleValidationError_Returns400WithDetail(t *testing.T) {
	handler := NewDefaultErrorHandler()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/test", nil)

	handler.HandleValidationError(recorder, request, fmt.Errorf("limit must be positive"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	var response dto.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, string(dto.ErrorCodeInvalidRequest), response.Error)
	assert.Equal(t, "limit must be positive", response.Message)
}

func TestWriteErrorResponse_PreservesCorrelationID(t *testing.T) {
	handler := NewDefaultErrorHandler()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/test", nil)
	request.Header.Set("X-Correlation-ID", "corr-42")

	handler.HandleServiceError(recorder, request, assert.AnError)

	assert.Equal(t, "corr-42", recorder.Header().Get("X-Correlation-ID"))
}
