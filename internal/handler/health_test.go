package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy() HealthChecker { return pingFunc(func(context.Context) error { return nil }) }

func failing(msg string) HealthChecker {
	return pingFunc(func(context.Context) error { return errors.New(msg) })
}

func readyz(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHealthHandler_Healthz(t *testing.T) {
	// Liveness never touches dependencies.
	h := NewHealthHandler(failing("down"), failing("down"))

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		postgres   HealthChecker
		redis      HealthChecker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			postgres:   healthy(),
			redis:      healthy(),
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "postgres down",
			postgres:   failing("connection refused"),
			redis:      healthy(),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "error: connection refused", "redis": "ok"},
		},
		{
			name:       "both down",
			postgres:   failing("connection refused"),
			redis:      failing("i/o timeout"),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "error: connection refused", "redis": "error: i/o timeout"},
		},
		{
			name:       "not configured",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "not configured", "redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := readyz(t, NewHealthHandler(tt.postgres, tt.redis))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthHandler_ReadyzPingsConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	// Each check returns only once both are in flight.
	rendezvous := pingFunc(func(ctx context.Context) error {
		started.Done()
		select {
		case <-allStarted:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	code, resp := readyz(t, NewHealthHandler(rendezvous, rendezvous))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, resp.Checks)
}

func TestHealthHandler_ReadyzBoundsChecks(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := NewHealthHandler(pingFunc(func(ctx context.Context) error {
		deadline, ok = ctx.Deadline()
		return nil
	}), nil)

	before := time.Now()
	code, _ := readyz(t, h)

	assert.Equal(t, http.StatusOK, code)
	require.True(t, ok, "checks run under a deadline")
	assert.WithinDuration(t, before.Add(readyTimeout), deadline, time.Second)
}
