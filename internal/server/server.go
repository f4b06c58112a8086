package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/metrics"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
	"github.com/tabledog/tdog-cli-sub000/internal/server/handlers"
	servermw "github.com/tabledog/tdog-cli-sub000/internal/server/middleware"
)

// Options configures the status server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string

	// Ledger backs /stats. A nil ledger makes /stats report unavailable.
	Ledger handlers.StatsSource
	// Progress, when set, adds the current run to /stats.
	Progress func() *handlers.RunProgress
	// Metrics backs /metrics. A nil registry disables the route.
	Metrics *metrics.Registry
	// Checks are run by /health.
	Checks map[string]handlers.HealthChecker
}

// Server is the status HTTP server run next to a download.
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
	health *handlers.HealthManager
}

// New creates a new status server
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)      // 1. Request ID (early for correlation)
	r.Use(servermw.RequestMetrics) // 2. Metrics and access log
	r.Use(servermw.Recovery)       // 3. Panic recovery

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		opts:   opts,
		health: handlers.NewHealthManager(opts.Version),
	}
	for name, check := range opts.Checks {
		s.health.RegisterChecker(name, check)
	}

	s.registerRoutes()

	return s
}

// Run serves until ctx is done, then shuts down gracefully. A listener
// failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  orDefault(s.opts.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(s.opts.WriteTimeout, 10*time.Second),
		IdleTimeout:  120 * time.Second,
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting status server", zap.String("addr", ln.Addr().String()))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), orDefault(s.opts.ShutdownTimeout, 5*time.Second))
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down status server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
