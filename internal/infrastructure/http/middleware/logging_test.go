package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"2xx logs as info", "/admin/tasks", http.StatusOK, "INFO"},
		{"3xx logs as info", "/admin/tasks", http.StatusMovedPermanently, "INFO"},
		{"4xx logs as warn", "/admin/tasks", http.StatusNotFound, "WARN"},
		{"5xx logs as error", "/admin/tasks", http.StatusInternalServerError, "ERROR"},
		{"healthy probe logs as debug", "/health", http.StatusOK, "DEBUG"},
		{"failing probe still logs as error", "/health", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := RequestLogger(bufferLogger(&buf), "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("expected status code %d, got %d", tt.status, w.Code)
			}
			var rec map[string]any
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("decode log record: %v", err)
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", rec["level"], tt.wantLevel)
			}
			if rec["bytes"] != float64(4) {
				t.Errorf("bytes = %v, want 4", rec["bytes"])
			}
		})
	}
}

func TestRequestLogger_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	handler := RequestLogger(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = appctx.GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/tasks", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "req-42"))
	req.Header.Set("User-Agent", "probe/1.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req-42" {
		t.Errorf("correlation id in handler = %q, want req-42", seen)
	}
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if rec["correlation_id"] != "req-42" || rec["user_agent"] != "probe/1.0" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestResponseWriter(t *testing.T) {
	base := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: base}

	n, err := rw.Write([]byte("test data"))
	if err != nil || n != 9 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if rw.statusCode != http.StatusOK || rw.bytesWritten != 9 {
		t.Errorf("statusCode = %d, bytesWritten = %d", rw.statusCode, rw.bytesWritten)
	}

	base = httptest.NewRecorder()
	rw = &responseWriter{ResponseWriter: base}
	rw.WriteHeader(http.StatusAccepted)
	_, _ = rw.Write([]byte("x"))
	if rw.statusCode != http.StatusAccepted || base.Code != http.StatusAccepted {
		t.Errorf("status should stay 202, got %d / %d", rw.statusCode, base.Code)
	}
}
