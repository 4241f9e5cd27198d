package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"llmarena/internal/domain"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Context    map[string]interface{} `json:"context,omitempty"`
	StatusCode int                    `json:"statusCode"`
}

// NewErrorBody builds the response body for a classified error
func NewErrorBody(detail domain.ErrorDetail) ErrorBody {
	return ErrorBody{
		Error:      detail.Code,
		Message:    detail.Message,
		Context:    detail.Context,
		StatusCode: detail.StatusCode,
	}
}

// RespondJSON writes a JSON response with the given status code.
// The payload is marshaled before headers are written so an encoding
// failure can still produce a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// RespondError classifies err and writes the error body.
// A 503 from an open circuit breaker also carries Retry-After.
func RespondError(w http.ResponseWriter, err error) {
	detail := domain.Describe(err)

	if detail.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(detail.RetryAfter))
	}

	payload, mErr := json.Marshal(NewErrorBody(detail))
	if mErr != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(detail.StatusCode)
	_, _ = w.Write(payload)
}
