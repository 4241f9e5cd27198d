package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"llmarena/internal/config"
	"llmarena/internal/domain"
)

// ParseJSON decodes the request body into dest.
// Bodies over config.MaxRequestBodyBytes and malformed JSON are reported as *domain.ValidationError.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &domain.ValidationError{
				Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
				Field:   "body",
			}
		}
		return &domain.ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err), Field: "body"}
	}

	return nil
}
