package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

var _ stripe.Observer = (*Registry)(nil)

// Attempt outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeHTTPError   = "http_error"
	OutcomeNetwork     = "network_error"
)

// AttemptOutcome classifies a physical attempt for labelling.
func AttemptOutcome(record stripe.ReqLog) string {
	switch {
	case record.NetworkError:
		return OutcomeNetwork
	case record.StatusCode() == http.StatusOK:
		return OutcomeOK
	case record.StatusCode() == http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeHTTPError
	}
}

// ObserveAttempt implements stripe.Observer.
func (r *Registry) ObserveAttempt(record stripe.ReqLog) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(AttemptOutcome(record)).Inc()
	r.attemptDuration.Observe((time.Duration(record.DurationMS) * time.Millisecond).Seconds())
	r.attemptBytes.Add(float64(record.Bytes))
}

// ObserveRetry implements stripe.Observer.
func (r *Registry) ObserveRetry(class stripe.FailureClass, wait time.Duration) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(string(class)).Inc()
	r.retryWait.WithLabelValues(string(class)).Observe(wait.Seconds())
}

// ObserveExhausted implements stripe.Observer.
func (r *Registry) ObserveExhausted(class stripe.FailureClass) {
	if r == nil {
		return
	}
	r.exhausted.WithLabelValues(string(class)).Inc()
}

// StatsSource yields ledger snapshots. *stripe.Ledger satisfies it.
type StatsSource interface {
	Snapshot() stripe.Stats
}

// LedgerCollector reports the shared ledger counters at scrape time, so the
// values exposed are always the ledger's own.
type LedgerCollector struct {
	source StatsSource

	total429   *prometheus.Desc
	retrying   *prometheus.Desc
	running    *prometheus.Desc
	pendingLog *prometheus.Desc
}

// NewLedgerCollector builds a collector over source.
func NewLedgerCollector(source StatsSource) *LedgerCollector {
	return &LedgerCollector{
		source: source,
		total429: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "ledger", "total_429_responses"),
			"429 responses observed by the client.",
			nil, nil),
		retrying: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "ledger", "cur_429_reqs_retrying"),
			"Logical requests currently retrying after a 429.",
			nil, nil),
		running: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "ledger", "running"),
			"Physical attempts in flight.",
			nil, nil),
		pendingLog: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "ledger", "pending_log_records"),
			"Attempt records waiting to be drained.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total429
	ch <- c.retrying
	ch <- c.running
	ch <- c.pendingLog
}

// Collect implements prometheus.Collector.
func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.total429, prometheus.CounterValue, float64(stats.Total429Responses))
	ch <- prometheus.MustNewConstMetric(c.retrying, prometheus.GaugeValue, float64(stats.Cur429ReqsRetrying))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(stats.Running))
	ch <- prometheus.MustNewConstMetric(c.pendingLog, prometheus.GaugeValue, float64(stats.PendingLog))
}

// WatchLedger registers a collector for source on the registry.
func (r *Registry) WatchLedger(source StatsSource) error {
	return r.reg.Register(NewLedgerCollector(source))
}
