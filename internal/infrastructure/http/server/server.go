package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"3tcapital/saftprocessor/internal/infrastructure/config"
	httpx "3tcapital/saftprocessor/internal/infrastructure/http"
	"3tcapital/saftprocessor/internal/infrastructure/http/middleware"
)

// Options wires the handlers served by the admin API.
type Options struct {
	Config        config.AppConfig
	Logger        *slog.Logger
	HealthHandler http.Handler
	// AdminRoutes registers the routes mounted under /admin. Nil leaves /admin unmounted.
	AdminRoutes func(r chi.Router)
	// Auth guards /admin. Nil means unauthenticated.
	Auth func(http.Handler) http.Handler
}

// Server is the HTTP front of the service: health probes and the admin API.
type Server struct {
	log             *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New builds the router and the underlying http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}
	log := opts.Logger.With("component", "http_server")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log, "/health"))
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/health", opts.HealthHandler)

	if opts.AdminRoutes != nil {
		r.Route("/admin", func(ar chi.Router) {
			if opts.Auth != nil {
				ar.Use(opts.Auth)
			}
			opts.AdminRoutes(ar)
		})
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "Not found", []string{req.URL.Path}, log)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", []string{req.Method + " " + req.URL.Path}, log)
	})

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}
	return &Server{log: log, httpServer: srv, shutdownTimeout: opts.Config.HTTP.ShutdownTimeout}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown() error {
	ctx := context.Background()
	if d := s.shutdownTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	s.log.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
