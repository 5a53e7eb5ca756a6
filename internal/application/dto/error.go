package dto

import "time"

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// ErrorCode represents standard error codes.
type ErrorCode string

const (
	// ErrorCodeInvalidRequest indicates that the request contains invalid parameters or data.
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrorCodeBalanceNotFound indicates that no balance exists for the organization.
	ErrorCodeBalanceNotFound ErrorCode = "BALANCE_NOT_FOUND"
	// ErrorCodeInsufficientBalance indicates the organization must top up before submitting work.
	ErrorCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	// ErrorCodeTaskNotFound indicates that the requested analysis task could not be found.
	ErrorCodeTaskNotFound ErrorCode = "TASK_NOT_FOUND"
	// ErrorCodeTaskExists indicates that a task with the same id was already submitted.
	ErrorCodeTaskExists ErrorCode = "TASK_ALREADY_EXISTS"
	// ErrorCodeInternalError indicates an unexpected internal server error occurred.
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeServiceUnavailable indicates that the service is temporarily unavailable.
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// NewErrorResponse creates a new error response.
func NewErrorResponse(code ErrorCode, message string, details interface{}) ErrorResponse {
	return ErrorResponse{
		Error:     string(code),
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}
