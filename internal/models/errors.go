package models

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/pkg/logger"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Authentication errors
	ErrorCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	ErrorCodeSessionExpired   ErrorCode = "SESSION_EXPIRED"
	ErrorCodeInvalidToken     ErrorCode = "INVALID_TOKEN"

	// Rate limiting errors
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Validation errors
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeMalformedJSON    ErrorCode = "MALFORMED_JSON"

	// Mutation admission errors
	ErrorCodeMutationPending ErrorCode = "MUTATION_PENDING"

	// Remote ledger transport errors
	ErrorCodeLedgerUnavailable ErrorCode = "LEDGER_UNAVAILABLE"
	ErrorCodeLedgerTimeout     ErrorCode = "LEDGER_TIMEOUT"
	ErrorCodeLedgerBadResponse ErrorCode = "LEDGER_BAD_RESPONSE"

	// Internal errors
	ErrorCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error         ErrorDetail `json:"error"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeNotAuthenticated, ErrorCodeSessionExpired, ErrorCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeInvalidRequest, ErrorCodeValidationFailed, ErrorCodeMalformedJSON:
		return http.StatusBadRequest
	case ErrorCodeMutationPending:
		return http.StatusConflict
	case ErrorCodeLedgerUnavailable, ErrorCodeLedgerTimeout, ErrorCodeLedgerBadResponse:
		return http.StatusBadGateway
	case ErrorCodeDatabaseError, ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode
	Message    string
	Details    string
	Cause      error
	Context    map[string]interface{}
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: code.HTTPStatusCode(),
		Context:    make(map[string]interface{}),
	}
}

// NewValidationError creates a local validation error
func NewValidationError(message, details string) *AppError {
	return NewAppErrorWithDetails(ErrorCodeValidationFailed, message, details)
}

// NewLedgerError creates a remote ledger transport error
func NewLedgerError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodeLedgerUnavailable, message, cause)
}

// HandleError handles application errors and sends the appropriate HTTP
// response. Unknown errors are wrapped as internal errors.
func HandleError(c *gin.Context, err error, log *logger.Logger) {
	var appErr *AppError
	if e, ok := err.(*AppError); ok {
		appErr = e
	} else {
		appErr = NewAppErrorWithCause(ErrorCodeInternalError, "Internal server error", err)
	}

	appErr.WithContext("method", c.Request.Method).
		WithContext("path", c.Request.URL.Path).
		WithContext("client_ip", c.ClientIP())

	if log != nil {
		logFields := []zap.Field{
			zap.String("error_code", string(appErr.Code)),
			zap.String("error_message", appErr.Message),
			zap.Any("error_context", appErr.Context),
		}
		if appErr.Cause != nil {
			logFields = append(logFields, zap.Error(appErr.Cause))
		}

		if appErr.StatusCode >= 500 {
			log.Error("Application error", logFields...)
		} else {
			log.Warn("Client error", logFields...)
		}
	}

	response := &ErrorResponse{
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Timestamp:     time.Now().UTC(),
		CorrelationID: logger.GetCorrelationIDFromContext(c.Request.Context()),
	}

	c.JSON(appErr.StatusCode, response)
}
