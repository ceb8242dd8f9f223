package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"3tcapital/saftprocessor/internal/infrastructure/config"
	"3tcapital/saftprocessor/internal/testutil"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func testConfig(port int) config.AppConfig {
	return config.AppConfig{
		HTTP: config.HTTPSettings{
			Port:            port,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
		},
	}
}

func TestNew_RequiredOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"nil logger", Options{HealthHandler: http.HandlerFunc(okHandler)}, "logger is required"},
		{"nil health handler", Options{Logger: testutil.NewNullLogger()}, "health handler is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestServer_Routes(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	srv, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: http.HandlerFunc(okHandler),
		AdminRoutes: func(r chi.Router) {
			r.Post("/ingestion/run", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
		},
		Auth: deny,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		token    bool
		wantCode int
	}{
		{"health is open", http.MethodGet, "/health", false, http.StatusOK},
		{"admin requires auth", http.MethodPost, "/admin/ingestion/run", false, http.StatusUnauthorized},
		{"admin with auth", http.MethodPost, "/admin/ingestion/run", true, http.StatusAccepted},
		{"unknown route", http.MethodGet, "/nope", false, http.StatusNotFound},
		{"wrong method", http.MethodPost, "/health", false, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token {
				req.Header.Set("Authorization", "Bearer x")
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestServer_WithoutAdminRoutes(t *testing.T) {
	srv, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: http.HandlerFunc(okHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tasks", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestServer_Run_ContextCancel(t *testing.T) {
	srv, err := New(Options{
		Config:        testConfig(0),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: http.HandlerFunc(okHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
