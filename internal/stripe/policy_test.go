package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyWithDefaults(t *testing.T) {
	require.Equal(t, DefaultPolicy(), Policy{}.withDefaults())

	policy := Policy{HTTPErrorWait: time.Second}.withDefaults()
	require.Equal(t, DefaultMaxNetworkErrors, policy.MaxNetworkErrors)
	require.Equal(t, DefaultMaxRateLimitErrors, policy.MaxRateLimitErrors)
	require.Equal(t, DefaultMaxHTTPErrors, policy.MaxHTTPErrors)
	require.Equal(t, time.Duration(0), policy.NetworkRetryWait)
	require.Equal(t, time.Duration(0), policy.RateLimitWaitMax)

	policy = Policy{
		MaxHTTPErrors:    4,
		HTTPErrorWait:    -time.Second,
		RateLimitWaitMin: 5 * time.Second,
		RateLimitWaitMax: time.Second,
	}.withDefaults()
	require.Equal(t, 4, policy.MaxHTTPErrors)
	require.Equal(t, DefaultHTTPErrorWait, policy.HTTPErrorWait)
	require.Equal(t, 5*time.Second, policy.RateLimitWaitMax)
}

func TestPolicyRateLimitWaitBounds(t *testing.T) {
	policy := DefaultPolicy()

	require.Equal(t, DefaultRateLimitWaitMin, policy.rateLimitWait(func(int64) int64 { return 0 }))
	require.Equal(t, DefaultRateLimitWaitMax, policy.rateLimitWait(func(n int64) int64 { return n - 1 }))
	require.Equal(t, DefaultRateLimitWaitMin, policy.rateLimitWait(nil))

	fixed := Policy{RateLimitWaitMin: 3 * time.Second, RateLimitWaitMax: 3 * time.Second}
	require.Equal(t, 3*time.Second, fixed.rateLimitWait(func(int64) int64 { return 99 }))
}

func TestNewAppliesPolicyOverrides(t *testing.T) {
	client, err := New(Config{
		SecretKey: "sk_test_123",
		Policy:    Policy{MaxNetworkErrors: 2, NetworkRetryWait: time.Second},
	})
	require.NoError(t, err)
	require.Equal(t, 2, client.Policy().MaxNetworkErrors)
	require.Equal(t, time.Second, client.Policy().NetworkRetryWait)
	require.Equal(t, DefaultMaxRateLimitErrors, client.Policy().MaxRateLimitErrors)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{SecretKey: "sk_test_123", BaseURL: "not a url"})
	require.Error(t, err)

	_, err = New(Config{SecretKey: "sk_test_123", Proxy: "://bad"})
	require.Error(t, err)

	client, err := New(Config{SecretKey: "sk_test_123", TimeoutMS: 1500})
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, client.http.Timeout)
	require.Equal(t, DefaultBaseURL, client.baseURL.String())
}
