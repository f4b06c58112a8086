// Package metrics exposes tdog's Prometheus metrics: Stripe attempts and
// retries, the shared rate-limit ledger, and the status server's own traffic.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "tdog"

// Metric names
const (
	AttemptsTotalName       = "stripe_attempts_total"
	AttemptDurationName     = "stripe_attempt_duration_seconds"
	AttemptBytesName        = "stripe_attempt_bytes_total"
	RetriesTotalName        = "stripe_retries_total"
	RetryWaitName           = "stripe_retry_wait_seconds"
	ExhaustedTotalName      = "stripe_exhausted_total"
	HTTPRequestsTotalName   = "http_requests_total"
	HTTPRequestDurationName = "http_request_duration_seconds"
	ErrorsTotalName         = "errors_total"
	PanicsTotalName         = "panics_total"
)

// Registry owns a Prometheus registry and every tdog metric registered on it.
type Registry struct {
	reg *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	attemptBytes    prometheus.Counter
	retries         *prometheus.CounterVec
	retryWait       *prometheus.HistogramVec
	exhausted       *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	panics       prometheus.Counter
}

// New builds a registry with the Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      AttemptsTotalName,
			Help:      "Physical Stripe HTTP attempts by outcome.",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      AttemptDurationName,
			Help:      "Duration of physical Stripe HTTP attempts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		attemptBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      AttemptBytesName,
			Help:      "Response body bytes read from Stripe.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      RetriesTotalName,
			Help:      "Retries scheduled by failure class.",
		}, []string{"class"}),
		retryWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      RetryWaitName,
			Help:      "Wait before each retry by failure class.",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20, 30},
		}, []string{"class"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      ExhaustedTotalName,
			Help:      "Logical requests whose retry budget ran out.",
		}, []string{"class"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      HTTPRequestsTotalName,
			Help:      "Status server requests.",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      HTTPRequestDurationName,
			Help:      "Status server request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      ErrorsTotalName,
			Help:      "Error responses written by the status server.",
		}, []string{"error_code", "http_status"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      PanicsTotalName,
			Help:      "Panics recovered by the status server.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.attempts,
		r.attemptDuration,
		r.attemptBytes,
		r.retries,
		r.retryWait,
		r.exhausted,
		r.httpRequests,
		r.httpDuration,
		r.errors,
		r.panics,
	)
	return r
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// RecordHTTPRequest records one status server request.
func (r *Registry) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError records an error response with code and status.
func (r *Registry) RecordError(errorCode string, httpStatus int) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(errorCode, strconv.Itoa(httpStatus)).Inc()
}

// RecordPanic records a panic recovery.
func (r *Registry) RecordPanic() {
	if r == nil {
		return
	}
	r.panics.Inc()
}

var defaultRegistry atomic.Pointer[Registry]

// SetDefault installs the registry used by the package-level helpers. A nil
// registry turns them into no-ops.
func SetDefault(r *Registry) {
	defaultRegistry.Store(r)
}

// Default returns the installed registry, or nil.
func Default() *Registry {
	return defaultRegistry.Load()
}

// RecordHTTPRequest records a status server request on the default registry.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	Default().RecordHTTPRequest(method, endpoint, status, duration)
}

// RecordError records an error response on the default registry.
func RecordError(errorCode string, httpStatus int) {
	Default().RecordError(errorCode, httpStatus)
}

// RecordPanic records a panic recovery on the default registry.
func RecordPanic() {
	Default().RecordPanic()
}
