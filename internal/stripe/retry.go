package stripe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 1 << 20

// RetryState tracks one logical request across its physical attempts. The
// counters are independent and never reset when the failure class changes.
type RetryState struct {
	NetworkErrors   int
	HTTPErrors      int
	RateLimitErrors int

	counted429 bool
}

// Attempts is the number of failed attempts seen so far.
func (s *RetryState) Attempts() int {
	return s.NetworkErrors + s.HTTPErrors + s.RateLimitErrors
}

// Counted429 reports whether this request currently holds a slot in the
// ledger's in-progress 429 counter.
func (s *RetryState) Counted429() bool {
	return s.counted429
}

// Do sends the request built by build, retrying transient failures:
//
//   - transport errors: first retry immediate, then NetworkRetryWait
//   - HTTP 429: uniform random wait in [RateLimitWaitMin, RateLimitWaitMax]
//   - any other non-200 status: HTTPErrorWait
//
// A 200 response is returned as soon as it arrives. When retries are disabled
// the first outcome is returned as is. Exceeding a class budget returns an
// *ExhaustedError carrying the last response payload.
func (c *Client) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	state := &RetryState{}
	for {
		req, err := build()
		if err != nil {
			c.ledger.Note429Resolved(state)
			return nil, fmt.Errorf("stripe: build request: %w", err)
		}

		resp, sendErr := c.send(req)
		if sendErr == nil && resp.StatusCode == http.StatusOK {
			c.ledger.Note429Resolved(state)
			return resp, nil
		}

		if !c.retry {
			if sendErr == nil && resp.StatusCode == http.StatusTooManyRequests {
				c.ledger.note429Observed()
			}
			return resp, sendErr
		}

		if sendErr != nil && ctx.Err() != nil {
			c.ledger.Note429Resolved(state)
			return nil, ctx.Err()
		}

		class, wait, exhausted := c.nextAttempt(state, resp)
		if exhausted {
			c.ledger.Note429Resolved(state)
			return nil, c.exhaustedError(class, state, req, resp, sendErr)
		}

		drain(resp)
		c.logRetry(class, state, req, resp, sendErr, wait)
		if c.observer != nil {
			c.observer.ObserveRetry(class, wait)
		}

		if err := c.sleep(ctx, wait); err != nil {
			c.ledger.Note429Resolved(state)
			return nil, err
		}
	}
}

// nextAttempt classifies a failed attempt, bumps its class counter and decides
// the wait before the next attempt.
func (c *Client) nextAttempt(state *RetryState, resp *http.Response) (FailureClass, time.Duration, bool) {
	switch {
	case resp == nil:
		state.NetworkErrors++
		if state.NetworkErrors > c.policy.MaxNetworkErrors {
			return ClassNetwork, 0, true
		}
		if state.NetworkErrors == 1 {
			return ClassNetwork, 0, false
		}
		return ClassNetwork, c.policy.NetworkRetryWait, false

	case resp.StatusCode == http.StatusTooManyRequests:
		c.ledger.Note429Seen(state)
		state.RateLimitErrors++
		if state.RateLimitErrors > c.policy.MaxRateLimitErrors {
			return ClassRateLimited, 0, true
		}
		return ClassRateLimited, c.policy.rateLimitWait(c.randN), false

	default:
		state.HTTPErrors++
		if state.HTTPErrors > c.policy.MaxHTTPErrors {
			return ClassHTTPStatus, 0, true
		}
		return ClassHTTPStatus, c.policy.HTTPErrorWait, false
	}
}

func (c *Client) exhaustedError(class FailureClass, state *RetryState, req *http.Request, resp *http.Response, sendErr error) *ExhaustedError {
	exhausted := &ExhaustedError{
		Class:    class,
		Attempts: state.Attempts(),
		Err:      sendErr,
	}
	if req != nil {
		exhausted.Method = req.Method
		exhausted.URL = req.URL.Redacted()
	}
	if resp != nil {
		exhausted.StatusCode = resp.StatusCode
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		if err == nil {
			exhausted.Body = body
			exhausted.API = parseAPIError(resp, body)
		}
	}

	if c.observer != nil {
		c.observer.ObserveExhausted(class)
	}
	if c.logger != nil {
		c.logger.Error("Stripe retry budget exhausted",
			zap.String("class", string(class)),
			zap.Int("attempts", exhausted.Attempts),
			zap.String("url", exhausted.URL),
			zap.Int("status", exhausted.StatusCode),
			zap.Error(sendErr))
	}
	return exhausted
}

func (c *Client) logRetry(class FailureClass, state *RetryState, req *http.Request, resp *http.Response, sendErr error, wait time.Duration) {
	if c.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("class", string(class)),
		zap.Int("attempt", state.Attempts()),
		zap.Duration("wait", wait),
		zap.String("url", req.URL.Redacted()),
	}
	if resp != nil {
		fields = append(fields, zap.Int("status", resp.StatusCode))
	}
	if sendErr != nil {
		fields = append(fields, zap.Error(sendErr))
	}

	if class == ClassRateLimited {
		fields = append(fields, zap.Int64("cur_429_reqs_retrying", c.ledger.Cur429Retrying()))
		c.logger.Warn("Stripe rate limited, retrying", fields...)
		return
	}
	c.logger.Debug("Stripe request failed, retrying", fields...)
}

// drain discards a response that will be superseded by a retry so its
// connection can be reused.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
