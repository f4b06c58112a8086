package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(ctx, newViper())
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify stripe defaults
		assert.Equal(t, stripe.DefaultBaseURL, cfg.Stripe.BaseURL)
		assert.True(t, cfg.Stripe.Retry)
		assert.True(t, cfg.Stripe.LogRequests)
		assert.Equal(t, 60000, cfg.Stripe.TimeoutMS)
		assert.Equal(t, stripe.DefaultPolicy(), cfg.Stripe.RetryPolicy)

		// Verify store defaults
		assert.Equal(t, DriverLibSQL, cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("tdog"), "tdog.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)

		// Verify download defaults
		assert.Empty(t, cfg.Download.Objects)
		assert.Equal(t, 4, cfg.Download.Concurrency)
		assert.Equal(t, stripe.MaxPageSize, cfg.Download.PageSize)
		assert.Equal(t, 250*time.Millisecond, cfg.Download.ThrottlePoll)
		assert.Equal(t, 2*time.Second, cfg.Download.LogDrainInterval)
		assert.Equal(t, OnExhaustedAbort, cfg.Download.OnExhausted)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 5*time.Second, cfg.Status.ShutdownTimeout)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("TDOG_STRIPE_TIMEOUT_MS", "1500")
		t.Setenv("TDOG_DOWNLOAD_OBJECTS", "Customers, charges,customers")
		t.Setenv("TDOG_DOWNLOAD_ON_EXHAUSTED", "skip")
		t.Setenv("TDOG_STRIPE_RETRY_POLICY_HTTP_ERROR_WAIT", "500ms")
		t.Setenv("STRIPE_SECRET_KEY", "sk_test_env")

		cfg, err := Load(ctx, newViper())
		require.NoError(t, err)
		assert.Equal(t, 1500, cfg.Stripe.TimeoutMS)
		assert.Equal(t, []string{"customers", "charges"}, cfg.Download.Objects)
		assert.Equal(t, OnExhaustedSkip, cfg.Download.OnExhausted)
		assert.Equal(t, 500*time.Millisecond, cfg.Stripe.RetryPolicy.HTTPErrorWait)
		assert.Equal(t, "sk_test_env", cfg.Stripe.SecretKey)
	})

	t.Run("PrefixedSecretWins", func(t *testing.T) {
		t.Setenv("STRIPE_SECRET_KEY", "sk_test_fallback")
		t.Setenv("TDOG_STRIPE_SECRET_KEY", "sk_test_primary")

		cfg, err := Load(ctx, newViper())
		require.NoError(t, err)
		assert.Equal(t, "sk_test_primary", cfg.Stripe.SecretKey)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
stripe:
  secret_key: sk_test_file
  retry_policy:
    max_rate_limit_errors: 5
    rate_limit_wait_max: 10s
store:
  driver: postgres
  dsn: postgres://tdog@localhost/tdog
download:
  objects: [invoices, refunds]
  concurrency: 2
  redact_fields: [email, address.line1]
`), 0o600))

		v := newViper()
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, "sk_test_file", cfg.Stripe.SecretKey)
		assert.Equal(t, 5, cfg.Stripe.RetryPolicy.MaxRateLimitErrors)
		assert.Equal(t, 10*time.Second, cfg.Stripe.RetryPolicy.RateLimitWaitMax)
		assert.Equal(t, stripe.DefaultMaxNetworkErrors, cfg.Stripe.RetryPolicy.MaxNetworkErrors)
		assert.Equal(t, DriverPostgres, cfg.Store.Driver)
		assert.Equal(t, []string{"invoices", "refunds"}, cfg.Download.Objects)
		assert.Equal(t, 2, cfg.Download.Concurrency)
		assert.Equal(t, []string{"email", "address.line1"}, cfg.Download.RedactFields)

		types, err := cfg.Download.ObjectTypes()
		require.NoError(t, err)
		require.Len(t, types, 2)
		assert.Equal(t, "/v1/invoices", types[0].Path)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		cfg, err := Load(ctx, newViper(),
			map[string]any{"download": map[string]any{"concurrency": 9}},
			map[string]any{"stripe.retry": false},
		)
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Download.Concurrency)
		assert.False(t, cfg.Stripe.Retry)
	})
}

func TestValidate(t *testing.T) {
	t.Run("RejectsInvalidSettings", func(t *testing.T) {
		_, err := Load(context.Background(), newViper(), map[string]any{
			"store.driver":          "oracle",
			"download.concurrency":  0,
			"download.page_size":    500,
			"download.on_exhausted": "retry",
			"download.objects":      []string{"widgets"},
			"logging.level":         "loud",
		})
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "unsupported store.driver")
		assert.Contains(t, msg, "download.concurrency")
		assert.Contains(t, msg, "download.page_size")
		assert.Contains(t, msg, "download.on_exhausted")
		assert.Contains(t, msg, `unknown object type "widgets"`)
		assert.Contains(t, msg, "logging.level")
	})

	t.Run("RequiresDSNForServerDrivers", func(t *testing.T) {
		_, err := Load(context.Background(), newViper(), map[string]any{"store.driver": "mysql"})
		require.ErrorContains(t, err, "store.dsn is required for mysql")
	})

	t.Run("DefaultObjectTypes", func(t *testing.T) {
		types, err := DownloadConfig{}.ObjectTypes()
		require.NoError(t, err)
		assert.Len(t, types, len(stripe.ObjectTypes))
	})
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		Stripe: StripeConfig{SecretKey: "sk_live_abcdefghijkl"},
		Store:  StoreConfig{DSN: "short"},
	}
	redacted := cfg.Redacted()
	assert.Equal(t, "sk_live_****", redacted.Stripe.SecretKey)
	assert.Equal(t, "****", redacted.Store.DSN)
	assert.Equal(t, "", redacted.Store.AuthToken)
	assert.Equal(t, "sk_live_abcdefghijkl", cfg.Stripe.SecretKey)
}
