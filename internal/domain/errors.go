package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Code is the stable machine-readable identifier sent to clients.
type HTTPError interface {
	error
	StatusCode() int
	Code() string
}

// ContextualError is implemented by errors that carry extra fields for the client.
type ContextualError interface {
	ErrorContext() map[string]interface{}
}

// Error codes sent in the "error" field of JSON error bodies
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeModelNotFound  = "MODEL_NOT_FOUND"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeProvider       = "PROVIDER_ERROR"
	CodeCircuitBreaker = "CIRCUIT_BREAKER_OPEN"
	CodeDatabase       = "DATABASE_ERROR"
	CodeGone           = "ENDPOINT_GONE"
	CodeInternal       = "INTERNAL_ERROR"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Domain error types implementing HTTPError interface
type (
	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
		Field   string
	}

	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ConflictError indicates the write lost against concurrent state (e.g. a turn already recorded)
	ConflictError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// RateLimitError indicates the caller exceeded its request budget
	RateLimitError struct {
		Message string
	}
)

func (e *ValidationError) Error() string   { return e.Message }
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ConflictError) Error() string     { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *RateLimitError) Error() string    { return e.Message }

func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ConflictError) StatusCode() int     { return http.StatusConflict }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *RateLimitError) StatusCode() int    { return http.StatusTooManyRequests }

func (e *ValidationError) Code() string   { return CodeValidation }
func (e *NotFoundError) Code() string     { return CodeNotFound }
func (e *ConflictError) Code() string     { return CodeConflict }
func (e *UnauthorizedError) Code() string { return CodeUnauthorized }
func (e *RateLimitError) Code() string    { return CodeRateLimited }

func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ConflictError) Is(target error) bool     { return target == ErrConflict }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// ErrorContext implements ContextualError
func (e *ValidationError) ErrorContext() map[string]interface{} {
	if e.Field == "" {
		return nil
	}
	return map[string]interface{}{"field": e.Field}
}

// NewValidationError wraps a validation failure (typically from ozzo-validation)
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Message: err.Error()}
}

// ModelNotFoundError indicates no provider owns the requested model id
type ModelNotFoundError struct {
	ModelID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.ModelID)
}

func (e *ModelNotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *ModelNotFoundError) Code() string    { return CodeModelNotFound }

// Is allows errors.Is() to match against ErrNotFound
func (e *ModelNotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *ModelNotFoundError) ErrorContext() map[string]interface{} {
	return map[string]interface{}{"modelId": e.ModelID}
}

// ProviderError indicates the vendor call failed.
// The registry annotates it with breaker observations before it leaves the service layer.
type ProviderError struct {
	Provider            string
	ModelID             string
	CircuitBreakerState string
	FailureCount        int
	Err                 error
}

func (e *ProviderError) Error() string {
	if e.ModelID != "" {
		return fmt.Sprintf("%s provider error (model %s): %v", e.Provider, e.ModelID, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error   { return e.Err }
func (e *ProviderError) StatusCode() int { return http.StatusBadGateway }
func (e *ProviderError) Code() string    { return CodeProvider }

func (e *ProviderError) ErrorContext() map[string]interface{} {
	ctx := map[string]interface{}{
		"provider":     e.Provider,
		"failureCount": e.FailureCount,
	}
	if e.ModelID != "" {
		ctx["modelId"] = e.ModelID
	}
	if e.CircuitBreakerState != "" {
		ctx["circuitBreakerState"] = e.CircuitBreakerState
	}
	return ctx
}

// CircuitBreakerError indicates the provider's breaker rejected the call without attempting it
type CircuitBreakerError struct {
	Provider     string
	FailureCount int
	RetryAfter   time.Duration
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker open for provider %s after %d failures", e.Provider, e.FailureCount)
}

func (e *CircuitBreakerError) StatusCode() int { return http.StatusServiceUnavailable }
func (e *CircuitBreakerError) Code() string    { return CodeCircuitBreaker }

// RetryAfterSeconds rounds RetryAfter up to whole seconds (minimum 1)
func (e *CircuitBreakerError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (e *CircuitBreakerError) ErrorContext() map[string]interface{} {
	return map[string]interface{}{
		"provider":     e.Provider,
		"failureCount": e.FailureCount,
		"retryAfter":   e.RetryAfterSeconds(),
	}
}

// GoneError indicates a retired endpoint
type GoneError struct {
	Message string
}

func (e *GoneError) Error() string   { return e.Message }
func (e *GoneError) StatusCode() int { return http.StatusGone }
func (e *GoneError) Code() string    { return CodeGone }

// DatabaseError indicates a persistence failure
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error   { return e.Err }
func (e *DatabaseError) StatusCode() int { return http.StatusInternalServerError }
func (e *DatabaseError) Code() string    { return CodeDatabase }

// ErrorDetail is the client-facing description of an error
type ErrorDetail struct {
	StatusCode int
	Code       string
	Message    string
	Context    map[string]interface{}
	RetryAfter int // seconds, set for CircuitBreakerError
}

// Describe classifies err for clients.
// The message is the innermost typed error's own text; fmt.Errorf wrappers
// around it are server-side context and are not echoed.
// Unclassified errors collapse to a generic 500 so internal messages never leak.
func Describe(err error) ErrorDetail {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		return ErrorDetail{
			StatusCode: http.StatusInternalServerError,
			Code:       CodeInternal,
			Message:    "internal server error",
		}
	}

	detail := ErrorDetail{
		StatusCode: httpErr.StatusCode(),
		Code:       httpErr.Code(),
		Message:    httpErr.Error(),
	}

	var ctxErr ContextualError
	if errors.As(err, &ctxErr) {
		detail.Context = ctxErr.ErrorContext()
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		detail.RetryAfter = cbErr.RetryAfterSeconds()
	}

	// Database errors keep their cause server-side
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		detail.Message = "database error"
	}

	return detail
}
