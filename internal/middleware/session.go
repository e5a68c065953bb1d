package middleware

import (
	"net/http"

	"github.com/pingpanda/pingpanda/internal/auth"
)

// RequireSession rejects callers that did not authenticate with a session.
// Must be applied after Auth middleware.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.AuthFromContext(r.Context())
		if authCtx == nil {
			writeAuthError(w)
			return
		}
		if !authCtx.IsSession() {
			writeError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "This operation requires a dashboard session")
			return
		}
		next.ServeHTTP(w, r)
	})
}
