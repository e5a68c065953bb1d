package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/metrics"
)

// DefaultMinAuthDuration is the minimum time spent on a failed
// authentication, to blunt timing attacks.
const DefaultMinAuthDuration = 200 * time.Millisecond

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver auth.Resolver
	Metrics  metrics.Recorder
	// MinDuration pads failed attempts. Zero uses DefaultMinAuthDuration;
	// negative disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that resolves the caller to a user through the
// configured resolver chain and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = DefaultMinAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			kind := credentialKind(r)

			authCtx, err := cfg.Resolver.Resolve(r)
			if err != nil {
				outcome := "invalid"
				switch {
				case errors.Is(err, auth.ErrNoCredential):
					outcome = "missing"
				case errors.Is(err, auth.ErrInvalidCredential):
				default:
					outcome = "error"
					cfg.Logger.Error("credential resolution failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", outcome),
					slog.String("credential", kind),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncAuthOutcome(kind, outcome)

				if elapsed := time.Since(start); minDuration > 0 && elapsed < minDuration {
					time.Sleep(minDuration - elapsed)
				}
				writeAuthError(w)
				return
			}

			cfg.Logger.Info("authentication successful",
				slog.String("method", string(authCtx.Method)),
				slog.String("user_id", authCtx.UserID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			recorder.IncAuthOutcome(string(authCtx.Method), "success")

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credentialKind labels what the caller presented, for logs and metrics.
func credentialKind(r *http.Request) string {
	if auth.ExtractAPIKey(r) != "" {
		return "api_key"
	}
	if r.Header.Get("Authorization") != "" || len(r.Cookies()) > 0 {
		return "session"
	}
	return "none"
}
