package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"llmarena/internal/auth"
	"llmarena/internal/domain"
	"llmarena/internal/httputil"
)

// accessTokenParam carries the token on EventSource requests, which cannot set headers
const accessTokenParam = "access_token"

// RequireAuth verifies the bearer token and stores the subject as the user id.
// A nil verifier leaves routes open.
func RequireAuth(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.RespondError(w, &domain.UnauthorizedError{Message: "missing access token"})
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Info("unauthorized request",
					"path", r.URL.Path,
					"client_ip", httputil.ClientIP(r),
				)
				httputil.RespondError(w, &domain.UnauthorizedError{Message: "invalid access token"})
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get(accessTokenParam)
	}
	return ""
}

// Chain applies middlewares so the first one listed is outermost
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
