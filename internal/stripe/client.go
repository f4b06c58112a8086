package stripe

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
)

const (
	// DefaultBaseURL is the production Stripe API endpoint.
	DefaultBaseURL = "https://api.stripe.com"
	// DefaultVersion is the Stripe-Version the object decoders expect.
	DefaultVersion = "2020-08-27"
)

// Config holds the settings for one remote account.
type Config struct {
	BaseURL       string
	SecretKey     string
	StripeVersion string
	Proxy         string
	TimeoutMS     int
	Retry         bool
	LogRequests   bool
	Policy        Policy
	UserAgent     string
}

// Observer receives attempt and retry events, typically for metrics.
type Observer interface {
	ObserveAttempt(record ReqLog)
	ObserveRetry(class FailureClass, wait time.Duration)
	ObserveExhausted(class FailureClass)
}

// Client is a handle to one Stripe account. Clones share the Ledger and the
// cached account metadata; nothing else changes after construction.
type Client struct {
	baseURL     *url.URL
	secretKey   string
	version     string
	userAgent   string
	http        *http.Client
	retry       bool
	logRequests bool
	policy      Policy

	ledger  *Ledger
	account *accountCache

	logger   *logging.Logger
	observer Observer
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	randN    func(n int64) int64
}

type accountCache struct {
	mu      sync.Mutex
	account *Account
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport-level client. Proxy and timeout
// settings from Config are ignored when this is used.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLedger shares an existing ledger, for handles built separately for the
// same account.
func WithLedger(l *Ledger) Option {
	return func(c *Client) {
		if l != nil {
			c.ledger = l
		}
	}
}

// WithLogger attaches a logger for retry decisions.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver attaches an attempt observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithClock overrides the time source used for attempt records.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSleeper overrides how retry waits are served.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithRandSource overrides the random source for rate-limit waits. randN must
// return a value in [0, n).
func WithRandSource(randN func(n int64) int64) Option {
	return func(c *Client) {
		if randN != nil {
			c.randN = randN
		}
	}
}

// New builds a client handle with a fresh ledger.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}

	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("invalid stripe base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid stripe base url: %q", rawBase)
	}

	hc, err := buildHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "tdog"
	}

	c := &Client{
		baseURL:     base,
		secretKey:   strings.TrimSpace(cfg.SecretKey),
		version:     strings.TrimSpace(cfg.StripeVersion),
		userAgent:   userAgent,
		http:        hc,
		retry:       cfg.Retry,
		logRequests: cfg.LogRequests,
		policy:      cfg.Policy.withDefaults(),
		ledger:      NewLedger(),
		account:     &accountCache{},
		clock:       func() time.Time { return time.Now().UTC() },
		sleep:       sleepContext,
		randN:       rand.Int64N,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Clone returns a handle sharing this client's ledger and account cache.
func (c *Client) Clone() *Client {
	clone := *c
	return &clone
}

// Ledger returns the shared statistics ledger.
func (c *Client) Ledger() *Ledger {
	return c.ledger
}

// RateLimitedNow reports how many logical requests are currently retrying a 429.
func (c *Client) RateLimitedNow() int64 {
	return c.ledger.Cur429Retrying()
}

// Policy returns the effective retry policy.
func (c *Client) Policy() Policy {
	return c.policy
}

func buildHTTPClient(cfg Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := strings.TrimSpace(cfg.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	hc := &http.Client{Transport: transport}
	if cfg.TimeoutMS > 0 {
		hc.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return hc, nil
}

// NewRequest returns a builder producing a fresh authenticated request on
// every call.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values) RequestBuilder {
	return func() (*http.Request, error) {
		target := c.baseURL.ResolveReference(&url.URL{Path: path})
		if len(query) > 0 {
			target.RawQuery = query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.secretKey, "")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if c.version != "" {
			req.Header.Set("Stripe-Version", c.version)
		}
		return req, nil
	}
}

func (c *Client) now() time.Time {
	return c.clock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
