// Package api provides the HTTP surface for batch submission, task
// polling, result export, billing and progress streaming.
package api

import (
	"errors"
	"net/http"

	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/dto"
	domainerrors "resumeflow/internal/domain/errors/domain"
)

// ErrorHandler defines methods for handling HTTP errors.
type ErrorHandler interface {
	HandleValidationError(w http.ResponseWriter, r *http.Request, err error)
	HandleServiceError(w http.ResponseWriter, r *http.Request, err error)
}

// ErrorHandlingConfig defines the configuration for handling specific
// error types. It centralizes response mapping so handlers never pick
// status codes themselves.
type ErrorHandlingConfig struct {
	LogMessage      string
	ErrorType       string
	HTTPStatus      int
	ErrorCode       dto.ErrorCode
	ResponseMessage string
	UseDetailedMsg  bool
}

// DefaultErrorHandler implements ErrorHandler with standard HTTP error responses.
type DefaultErrorHandler struct {
	errorConfigs map[error]ErrorHandlingConfig
}

// NewDefaultErrorHandler creates a new DefaultErrorHandler with predefined error configurations.
func NewDefaultErrorHandler() ErrorHandler {
	configs := map[error]ErrorHandlingConfig{
		domainerrors.ErrInvalidInput: {
			LogMessage:     "Invalid request",
			ErrorType:      "invalid_input",
			HTTPStatus:     http.StatusBadRequest,
			ErrorCode:      dto.ErrorCodeInvalidRequest,
			UseDetailedMsg: true,
		},
		domainerrors.ErrBalanceNotFound: {
			LogMessage:      "Balance not found",
			ErrorType:       "balance_not_found",
			HTTPStatus:      http.StatusNotFound,
			ErrorCode:       dto.ErrorCodeBalanceNotFound,
			ResponseMessage: "No balance exists for this organization",
		},
		domainerrors.ErrInsufficientBalance: {
			LogMessage:      "Insufficient balance",
			ErrorType:       "insufficient_balance",
			HTTPStatus:      http.StatusPaymentRequired,
			ErrorCode:       dto.ErrorCodeInsufficientBalance,
			ResponseMessage: "Balance is too low to submit analysis work",
		},
		domainerrors.ErrTaskNotFound: {
			LogMessage:      "Analysis task not found",
			ErrorType:       "task_not_found",
			HTTPStatus:      http.StatusNotFound,
			ErrorCode:       dto.ErrorCodeTaskNotFound,
			ResponseMessage: "Analysis task not found",
		},
		domainerrors.ErrTaskAlreadyExists: {
			LogMessage:      "Analysis task already exists",
			ErrorType:       "task_exists",
			HTTPStatus:      http.StatusConflict,
			ErrorCode:       dto.ErrorCodeTaskExists,
			ResponseMessage: "An analysis task with this id was already submitted",
		},
		domainerrors.ErrResumeUnavailable: {
			LogMessage:      "Resume source unavailable",
			ErrorType:       "resume_unavailable",
			HTTPStatus:      http.StatusBadGateway,
			ErrorCode:       dto.ErrorCodeServiceUnavailable,
			ResponseMessage: "The resume source could not be reached",
		},
	}

	return &DefaultErrorHandler{
		errorConfigs: configs,
	}
}

// logError logs an error with consistent context fields.
func (h *DefaultErrorHandler) logError(r *http.Request, message, errorType string, err error) {
	slogger.Error(r.Context(), message, slogger.Fields{
		"error": err.Error(),
		"path":  r.URL.Path,
		"type":  errorType,
	})
}

// handleErrorWithConfig handles an error using its configuration.
func (h *DefaultErrorHandler) handleErrorWithConfig(w http.ResponseWriter, r *http.Request, err error, config ErrorHandlingConfig) {
	h.logError(r, config.LogMessage, config.ErrorType, err)

	message := config.ResponseMessage
	if config.UseDetailedMsg {
		message = err.Error()
	}

	response := dto.NewErrorResponse(config.ErrorCode, message, nil)
	h.writeErrorResponse(w, r, config.HTTPStatus, response)
}

// HandleValidationError handles validation errors by returning 400 Bad Request.
func (h *DefaultErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, "Validation error occurred", "validation", err)

	response := dto.NewErrorResponse(dto.ErrorCodeInvalidRequest, err.Error(), nil)
	h.writeErrorResponse(w, r, http.StatusBadRequest, response)
}

// HandleServiceError handles service errors by mapping them to appropriate HTTP status codes.
func (h *DefaultErrorHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for domainErr, config := range h.errorConfigs {
		if errors.Is(err, domainErr) {
			h.handleErrorWithConfig(w, r, err, config)
			return
		}
	}

	defaultConfig := ErrorHandlingConfig{
		LogMessage:      "Internal server error",
		ErrorType:       "internal",
		HTTPStatus:      http.StatusInternalServerError,
		ErrorCode:       dto.ErrorCodeInternalError,
		ResponseMessage: "An internal error occurred",
	}
	h.handleErrorWithConfig(w, r, err, defaultConfig)
}

// writeErrorResponse writes an error response as JSON with correlation ID preservation.
func (h *DefaultErrorHandler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, response dto.ErrorResponse) {
	if correlationID := r.Header.Get("X-Correlation-ID"); correlationID != "" {
		w.Header().Set("X-Correlation-ID", correlationID)
	}

	if err := WriteJSON(w, statusCode, response); err != nil {
		// Fall back to plain text if JSON writing fails.
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		if _, writeErr := w.Write([]byte("Internal Server Error")); writeErr != nil {
			_ = writeErr
		}
	}
}
