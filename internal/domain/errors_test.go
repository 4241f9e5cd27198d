package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
		wantRetry  int
		wantCtxKey string
	}{
		{
			name:       "validation with field",
			err:        &ValidationError{Message: "topic is required", Field: "topic"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeValidation,
			wantMsg:    "topic is required",
			wantCtxKey: "field",
		},
		{
			name:       "model not found",
			err:        &ModelNotFoundError{ModelID: "gpt-9"},
			wantStatus: http.StatusNotFound,
			wantCode:   CodeModelNotFound,
			wantMsg:    "model not found: gpt-9",
			wantCtxKey: "modelId",
		},
		{
			name:       "wrapped provider error drops the wrapper prefix",
			err:        fmt.Errorf("compare: %w", &ProviderError{Provider: "openai", ModelID: "gpt-4o", Err: errors.New("500")}),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeProvider,
			wantMsg:    "openai provider error (model gpt-4o): 500",
			wantCtxKey: "provider",
		},
		{
			name:       "circuit breaker rounds retry up",
			err:        &CircuitBreakerError{Provider: "xai", FailureCount: 5, RetryAfter: 1500 * time.Millisecond},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeCircuitBreaker,
			wantMsg:    "circuit breaker open for provider xai after 5 failures",
			wantRetry:  2,
			wantCtxKey: "retryAfter",
		},
		{
			name:       "gone",
			err:        &GoneError{Message: "use /api/debate/stream/init"},
			wantStatus: http.StatusGone,
			wantCode:   CodeGone,
			wantMsg:    "use /api/debate/stream/init",
		},
		{
			name:       "database cause is hidden",
			err:        &DatabaseError{Op: "append turn", Err: errors.New("password authentication failed")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeDatabase,
			wantMsg:    "database error",
		},
		{
			name:       "unclassified",
			err:        errors.New("nil pointer somewhere"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			if got.StatusCode != tt.wantStatus || got.Code != tt.wantCode || got.Message != tt.wantMsg {
				t.Errorf("Describe() = %d %s %q, want %d %s %q",
					got.StatusCode, got.Code, got.Message, tt.wantStatus, tt.wantCode, tt.wantMsg)
			}
			if got.RetryAfter != tt.wantRetry {
				t.Errorf("RetryAfter = %d, want %d", got.RetryAfter, tt.wantRetry)
			}
			if tt.wantCtxKey != "" {
				if _, ok := got.Context[tt.wantCtxKey]; !ok {
					t.Errorf("context %v missing key %q", got.Context, tt.wantCtxKey)
				}
			}
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{&ValidationError{Message: "x"}, ErrValidation},
		{&NotFoundError{Message: "x"}, ErrNotFound},
		{&ModelNotFoundError{ModelID: "x"}, ErrNotFound},
		{&ConflictError{Message: "x"}, ErrConflict},
		{fmt.Errorf("wrapped: %w", &UnauthorizedError{Message: "x"}), ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.target.Error(), func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%T, %v) = false", tt.err, tt.target)
			}
		})
	}
}

func TestCircuitBreakerError_RetryAfterMinimum(t *testing.T) {
	err := &CircuitBreakerError{Provider: "p"}
	if got := err.RetryAfterSeconds(); got != 1 {
		t.Errorf("RetryAfterSeconds() = %d, want 1", got)
	}
}
