package handler

import (
	"log/slog"
	"net/http"

	"llmarena/internal/domain"
	"llmarena/internal/httputil"
)

// handleError logs server-side failures and writes the classified error body
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if status := domain.Describe(err).StatusCode; status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	httputil.RespondError(w, err)
}
