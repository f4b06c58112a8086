package server

import (
	"net/http"

	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/stats", handlers.StatsHandler(s.opts.Ledger, s.opts.Progress))

	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	} else {
		s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			apperrors.RespondWithEnvelope(w, r, apperrors.NewServiceUnavailableError("Metrics registry not initialized"))
		})
	}
}
