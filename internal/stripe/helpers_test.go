package stripe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// step is one scripted transport outcome. A non-nil err simulates a
// connection failure.
type step struct {
	status int
	body   string
	err    error
}

// scriptedTransport replays steps in order and repeats the last one once the
// script runs out.
type scriptedTransport struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	idx := min(s.calls, len(s.steps)-1)
	s.calls++
	current := s.steps[idx]
	s.mu.Unlock()

	if current.err != nil {
		return nil, current.err
	}
	return newResponse(req, current.status, current.body), nil
}

func (s *scriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        make(http.Header),
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	waits  []time.Duration
	onWait func(time.Duration)
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	hook := r.onWait
	r.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (r *sleepRecorder) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.waits))
	copy(out, r.waits)
	return out
}

func newTestClient(t *testing.T, rt http.RoundTripper, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()

	recorder := &sleepRecorder{}
	base := []Option{
		WithHTTPClient(&http.Client{Transport: rt}),
		WithSleeper(recorder.sleep),
		WithRandSource(func(int64) int64 { return 0 }),
	}
	client, err := New(Config{
		BaseURL:     "https://api.stripe.test",
		SecretKey:   "sk_test_123",
		Retry:       true,
		LogRequests: true,
	}, append(base, opts...)...)
	require.NoError(t, err)
	return client, recorder
}

func getCharges(ctx context.Context, c *Client) RequestBuilder {
	return c.NewRequest(ctx, http.MethodGet, "/v1/charges", nil)
}
