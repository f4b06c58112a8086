package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tabledog/tdog-cli-sub000/internal/metrics"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
)

// statusRecorder remembers what the handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.size += int64(n)
	return n, err
}

// statusRoutes are the only paths the status server serves.
var statusRoutes = map[string]bool{
	"/":        true,
	"/health":  true,
	"/version": true,
	"/stats":   true,
	"/metrics": true,
}

// routeLabel keeps the endpoint label bounded: the chi pattern when routed,
// a known status path, or /unknown.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if statusRoutes[r.URL.Path] {
		return r.URL.Path
	}
	return "/unknown"
}

// RequestMetrics counts every status request and writes an access log line.
// Prometheus scrapes are logged at debug so they do not flood the log.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(started)
		route := routeLabel(r)
		metrics.RecordHTTPRequest(r.Method, route, rec.status, elapsed)

		logger := observability.ServerLogger
		if logger == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.Int64("bytes", rec.size),
			zap.String("request_id", GetRequestID(r.Context())),
		}
		if route == "/metrics" {
			logger.Debug("Status request", fields...)
			return
		}
		logger.Info("Status request", fields...)
	})
}
