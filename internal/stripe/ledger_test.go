package stripe

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedgerNote429SeenCountsRequestOnce(t *testing.T) {
	ledger := NewLedger()
	state := &RetryState{}

	ledger.Note429Seen(state)
	ledger.Note429Seen(state)
	ledger.Note429Seen(state)

	require.Equal(t, int64(3), ledger.Total429())
	require.Equal(t, int64(1), ledger.Cur429Retrying())
	require.True(t, state.Counted429())

	ledger.Note429Resolved(state)
	require.Equal(t, int64(0), ledger.Cur429Retrying())
	require.False(t, state.Counted429())
}

func TestLedgerNote429ResolvedIsIdempotent(t *testing.T) {
	ledger := NewLedger()
	held := &RetryState{}
	other := &RetryState{}

	ledger.Note429Seen(held)
	ledger.Note429Seen(other)
	require.Equal(t, int64(2), ledger.Cur429Retrying())

	ledger.Note429Resolved(held)
	ledger.Note429Resolved(held)
	ledger.Note429Resolved(&RetryState{})
	ledger.Note429Resolved(nil)

	require.Equal(t, int64(1), ledger.Cur429Retrying())
	require.Equal(t, int64(2), ledger.Total429())
}

func TestLedgerRecordAttempt(t *testing.T) {
	ledger := NewLedger()
	status := http.StatusOK

	ledger.RecordAttemptStart()
	ledger.RecordAttemptStart()
	require.Equal(t, int64(2), ledger.Running())

	ledger.RecordAttemptEnd(ReqLog{Status: &status}, true)
	ledger.RecordAttemptEnd(ReqLog{NetworkError: true}, false)
	require.Equal(t, int64(0), ledger.Running())

	log := ledger.RequestLog()
	require.Len(t, log, 1)
	require.Equal(t, http.StatusOK, log[0].StatusCode())
	require.Equal(t, 0, ReqLog{NetworkError: true}.StatusCode())
}

func TestLedgerDrainLog(t *testing.T) {
	ledger := NewLedger()
	for range 3 {
		ledger.RecordAttemptStart()
		ledger.RecordAttemptEnd(ReqLog{}, true)
	}

	stats := ledger.Snapshot()
	require.Equal(t, 3, stats.PendingLog)

	drained := ledger.DrainLog()
	require.Len(t, drained, 3)
	require.Empty(t, ledger.RequestLog())
	require.Equal(t, 0, ledger.Snapshot().PendingLog)
}

func TestLedgerConcurrentUpdates(t *testing.T) {
	ledger := NewLedger()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := &RetryState{}
			ledger.RecordAttemptStart()
			ledger.Note429Seen(state)
			ledger.RecordAttemptEnd(ReqLog{}, true)
			ledger.Note429Resolved(state)
		}()
	}
	wg.Wait()

	stats := ledger.Snapshot()
	require.Equal(t, int64(50), stats.Total429Responses)
	require.Equal(t, int64(0), stats.Cur429ReqsRetrying)
	require.Equal(t, int64(0), stats.Running)
	require.Equal(t, 50, stats.PendingLog)
}

func TestSendTracksRunningAttempts(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		close(entered)
		<-release
		return newResponse(req, http.StatusOK, "{}"), nil
	})
	client, _ := newTestClient(t, transport)

	done := make(chan error, 1)
	go func() {
		resp, err := client.Do(context.Background(), getCharges(context.Background(), client))
		if err == nil {
			_ = resp.Body.Close()
		}
		done <- err
	}()

	<-entered
	require.Equal(t, int64(1), client.Ledger().Running())
	close(release)
	require.NoError(t, <-done)
	require.Equal(t, int64(0), client.Ledger().Running())
}

func TestSendClampsNegativeDuration(t *testing.T) {
	transport := &scriptedTransport{steps: []step{{status: http.StatusOK}}}
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-5 * time.Second)}
	calls := 0
	client, _ := newTestClient(t, transport, WithClock(func() time.Time {
		now := times[min(calls, len(times)-1)]
		calls++
		return now
	}))

	resp, err := client.Do(context.Background(), getCharges(context.Background(), client))
	require.NoError(t, err)
	_ = resp.Body.Close()

	log := client.Ledger().RequestLog()
	require.Len(t, log, 1)
	require.Equal(t, int64(0), log[0].DurationMS)
}

func TestSendSkipsLogWhenDisabled(t *testing.T) {
	transport := &scriptedTransport{steps: []step{{status: http.StatusOK}}}
	client, _ := newTestClient(t, transport)
	client.logRequests = false

	resp, err := client.Do(context.Background(), getCharges(context.Background(), client))
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Empty(t, client.Ledger().RequestLog())
	require.Equal(t, int64(0), client.Ledger().Running())
}

type recordingObserver struct {
	mu        sync.Mutex
	attempts  int
	retries   []FailureClass
	exhausted []FailureClass
}

func (o *recordingObserver) ObserveAttempt(ReqLog) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
}

func (o *recordingObserver) ObserveRetry(class FailureClass, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, class)
}

func (o *recordingObserver) ObserveExhausted(class FailureClass) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exhausted = append(o.exhausted, class)
}

func TestObserverSeesAttemptsAndRetries(t *testing.T) {
	transport := &scriptedTransport{steps: []step{{status: http.StatusBadRequest, body: `{}`}}}
	observer := &recordingObserver{}
	client, _ := newTestClient(t, transport, WithObserver(observer))

	_, err := client.Do(context.Background(), getCharges(context.Background(), client))
	require.ErrorIs(t, err, ErrRetriesExhausted)

	require.Equal(t, 3, observer.attempts)
	require.Equal(t, []FailureClass{ClassHTTPStatus, ClassHTTPStatus}, observer.retries)
	require.Equal(t, []FailureClass{ClassHTTPStatus}, observer.exhausted)
}
