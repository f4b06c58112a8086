package stripe

import "time"

// Retry budgets and waits tuned against the live Stripe API.
const (
	// DefaultMaxNetworkErrors is the number of transport failures tolerated
	// per logical request; the next one exhausts the budget.
	DefaultMaxNetworkErrors = 5
	// DefaultNetworkRetryWait applies from the second transport failure on.
	// The first failure is retried immediately since pooled connections are
	// dropped server side without notice.
	DefaultNetworkRetryWait = 10 * time.Second

	DefaultMaxRateLimitErrors = 20
	DefaultRateLimitWaitMin   = 1 * time.Second
	DefaultRateLimitWaitMax   = 30 * time.Second

	// DefaultMaxHTTPErrors assumes read-only endpoints, so blind retry is safe.
	DefaultMaxHTTPErrors = 2
	DefaultHTTPErrorWait = 2 * time.Second
)

// FailureClass identifies the retry branch taken for a failed attempt.
type FailureClass string

const (
	ClassNetwork     FailureClass = "network"
	ClassRateLimited FailureClass = "rate_limited"
	ClassHTTPStatus  FailureClass = "http_status"
)

// Policy holds the per-class retry budgets and waits.
type Policy struct {
	MaxNetworkErrors   int           `mapstructure:"max_network_errors" yaml:"max_network_errors"`
	NetworkRetryWait   time.Duration `mapstructure:"network_retry_wait" yaml:"network_retry_wait"`
	MaxRateLimitErrors int           `mapstructure:"max_rate_limit_errors" yaml:"max_rate_limit_errors"`
	RateLimitWaitMin   time.Duration `mapstructure:"rate_limit_wait_min" yaml:"rate_limit_wait_min"`
	RateLimitWaitMax   time.Duration `mapstructure:"rate_limit_wait_max" yaml:"rate_limit_wait_max"`
	MaxHTTPErrors      int           `mapstructure:"max_http_errors" yaml:"max_http_errors"`
	HTTPErrorWait      time.Duration `mapstructure:"http_error_wait" yaml:"http_error_wait"`
}

// DefaultPolicy returns the stock retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxNetworkErrors:   DefaultMaxNetworkErrors,
		NetworkRetryWait:   DefaultNetworkRetryWait,
		MaxRateLimitErrors: DefaultMaxRateLimitErrors,
		RateLimitWaitMin:   DefaultRateLimitWaitMin,
		RateLimitWaitMax:   DefaultRateLimitWaitMax,
		MaxHTTPErrors:      DefaultMaxHTTPErrors,
		HTTPErrorWait:      DefaultHTTPErrorWait,
	}
}

// withDefaults fills zero budgets from DefaultPolicy. An entirely unset policy
// becomes DefaultPolicy. Otherwise waits may legitimately be zero, so only
// negative waits are replaced.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p == (Policy{}) {
		return def
	}
	if p.MaxNetworkErrors <= 0 {
		p.MaxNetworkErrors = def.MaxNetworkErrors
	}
	if p.MaxRateLimitErrors <= 0 {
		p.MaxRateLimitErrors = def.MaxRateLimitErrors
	}
	if p.MaxHTTPErrors <= 0 {
		p.MaxHTTPErrors = def.MaxHTTPErrors
	}
	if p.NetworkRetryWait < 0 {
		p.NetworkRetryWait = def.NetworkRetryWait
	}
	if p.HTTPErrorWait < 0 {
		p.HTTPErrorWait = def.HTTPErrorWait
	}
	if p.RateLimitWaitMin < 0 {
		p.RateLimitWaitMin = def.RateLimitWaitMin
	}
	if p.RateLimitWaitMax < p.RateLimitWaitMin {
		p.RateLimitWaitMax = p.RateLimitWaitMin
	}
	return p
}

// rateLimitWait picks a wait uniformly in [RateLimitWaitMin, RateLimitWaitMax].
// Concurrent requests hitting the limit together must not retry in lockstep.
func (p Policy) rateLimitWait(randN func(int64) int64) time.Duration {
	span := int64(p.RateLimitWaitMax - p.RateLimitWaitMin)
	if span <= 0 || randN == nil {
		return p.RateLimitWaitMin
	}
	return p.RateLimitWaitMin + time.Duration(randN(span+1))
}
