package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		traceID   string
		keepID    bool
		wantTrace string
	}{
		{name: "generated when absent", keepID: false},
		{name: "caller id kept", requestID: "req-42.retry_1", keepID: true},
		{name: "id with spaces replaced", requestID: "bad id", keepID: false},
		{name: "id with newline replaced", requestID: "a\nlevel=error", keepID: false},
		{name: "oversized id replaced", requestID: strings.Repeat("a", maxCorrelationIDLen+1), keepID: false},
		{name: "trace propagated", traceID: "4bf92f3577b34da6", wantTrace: "4bf92f3577b34da6"},
		{name: "malformed trace dropped", traceID: "bad trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID, gotTrace string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID = GetRequestID(r.Context())
				gotTrace = GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			if tt.traceID != "" {
				req.Header.Set(TraceIDHeader, tt.traceID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if tt.keepID {
				if gotID != tt.requestID {
					t.Errorf("request id = %q, want %q", gotID, tt.requestID)
				}
			} else if _, err := uuid.Parse(gotID); err != nil {
				t.Errorf("request id = %q, want a generated UUID", gotID)
			}
			if h := rec.Header().Get(RequestIDHeader); h != gotID {
				t.Errorf("%s header = %q, want %q", RequestIDHeader, h, gotID)
			}

			if gotTrace != tt.wantTrace {
				t.Errorf("trace id = %q, want %q", gotTrace, tt.wantTrace)
			}
			if h := rec.Header().Get(TraceIDHeader); h != tt.wantTrace {
				t.Errorf("%s header = %q, want %q", TraceIDHeader, h, tt.wantTrace)
			}
		})
	}
}

func TestGetRequestID_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID = %q, want empty", id)
	}
}
