package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottlePoll is how often a held submission re-checks the gate.
const DefaultThrottlePoll = 250 * time.Millisecond

// RateLimitGate reports how many logical requests are waiting out a 429.
// *stripe.Ledger satisfies it.
type RateLimitGate interface {
	Cur429Retrying() int64
}

// Throttle paces new request submissions. While any request is retrying a
// 429 it holds new work back, then it applies a token bucket.
type Throttle struct {
	Limiter *rate.Limiter
	Gate    RateLimitGate
	Poll    time.Duration
	Clock   func() time.Time

	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle builds a throttle allowing rps submissions per second with the
// given burst. rps <= 0 disables the token bucket.
func NewThrottle(rps float64, burst int, gate RateLimitGate, poll time.Duration) *Throttle {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		Limiter: rate.NewLimiter(limit, burst),
		Gate:    gate,
		Poll:    poll,
	}
}

// Wait blocks until a new request may be submitted and reports how long the
// rate-limit gate held it.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	if t == nil {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var held time.Duration
	if t.Gate != nil && t.Gate.Cur429Retrying() > 0 {
		start := t.now()
		for t.Gate.Cur429Retrying() > 0 {
			if err := t.pause(ctx, t.poll()); err != nil {
				return t.now().Sub(start), err
			}
		}
		held = t.now().Sub(start)
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return held, err
		}
	}
	return held, nil
}

func (t *Throttle) poll() time.Duration {
	if t.Poll > 0 {
		return t.Poll
	}
	return DefaultThrottlePoll
}

func (t *Throttle) pause(ctx context.Context, d time.Duration) error {
	if t.sleep != nil {
		return t.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Throttle) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
