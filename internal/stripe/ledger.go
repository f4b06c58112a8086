package stripe

import (
	"sync"
	"time"
)

// ReqLog records one physical HTTP attempt.
type ReqLog struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DurationMS   int64     `json:"duration_ms"`
	Bytes        int64     `json:"bytes"`
	Status       *int      `json:"status,omitempty"`
	NetworkError bool      `json:"network_error"`
}

// StatusCode returns the recorded HTTP status, or 0 when no response was obtained.
func (r ReqLog) StatusCode() int {
	if r.Status == nil {
		return 0
	}
	return *r.Status
}

// Stats is a point-in-time copy of the ledger counters.
type Stats struct {
	Total429Responses  int64 `json:"total_429_responses"`
	Cur429ReqsRetrying int64 `json:"cur_429_reqs_retrying"`
	Running            int64 `json:"running"`
	PendingLog         int   `json:"pending_log"`
}

// Ledger holds request statistics for one remote account. Every clone of a
// Client shares the same *Ledger.
type Ledger struct {
	mu             sync.RWMutex
	total429       int64
	cur429Retrying int64
	running        int64
	reqLog         []ReqLog
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// RecordAttemptStart marks a physical attempt as in flight.
func (l *Ledger) RecordAttemptStart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running++
}

// RecordAttemptEnd marks a physical attempt as complete and, when keep is
// set, appends its record to the request log.
func (l *Ledger) RecordAttemptEnd(record ReqLog, keep bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running--
	if keep {
		l.reqLog = append(l.reqLog, record)
	}
}

// Note429Seen counts a 429 response. The in-progress counter is bumped only
// the first time a given logical request is rate limited.
func (l *Ledger) Note429Seen(state *RetryState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total429++
	if state != nil && !state.counted429 {
		state.counted429 = true
		l.cur429Retrying++
	}
}

// Note429Resolved releases the in-progress slot taken by Note429Seen. It is a
// no-op for logical requests that were never counted.
func (l *Ledger) Note429Resolved(state *RetryState) {
	if state == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !state.counted429 {
		return
	}
	state.counted429 = false
	if l.cur429Retrying > 0 {
		l.cur429Retrying--
	}
}

// note429Observed counts a 429 that will not be retried.
func (l *Ledger) note429Observed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total429++
}

// Cur429Retrying reports how many logical requests are currently waiting out
// a rate limit. Schedulers poll it to hold back new work.
func (l *Ledger) Cur429Retrying() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur429Retrying
}

// Total429 reports every 429 response observed so far.
func (l *Ledger) Total429() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total429
}

// Running reports physical attempts currently in flight.
func (l *Ledger) Running() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

// Snapshot returns all counters read under one lock.
func (l *Ledger) Snapshot() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Total429Responses:  l.total429,
		Cur429ReqsRetrying: l.cur429Retrying,
		Running:            l.running,
		PendingLog:         len(l.reqLog),
	}
}

// RequestLog returns a copy of the pending attempt records.
func (l *Ledger) RequestLog() []ReqLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ReqLog, len(l.reqLog))
	copy(out, l.reqLog)
	return out
}

// DrainLog removes and returns the pending attempt records. The log is never
// trimmed otherwise; owners are expected to drain it periodically.
func (l *Ledger) DrainLog() []ReqLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.reqLog
	l.reqLog = nil
	return out
}
