package config

import (
	"time"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// Config represents the complete tdog configuration. Values are layered:
// built-in defaults, then the user config file
// ($XDG_CONFIG_HOME/tdog/config.yaml), then TDOG_* environment variables and
// command-line overrides.
type Config struct {
	Stripe   StripeConfig   `mapstructure:"stripe" yaml:"stripe"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
}

// StripeConfig describes the remote account and how requests to it are sent.
type StripeConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	SecretKey     string `mapstructure:"secret_key" yaml:"secret_key"`
	StripeVersion string `mapstructure:"stripe_version" yaml:"stripe_version"`
	Proxy         string `mapstructure:"proxy" yaml:"proxy,omitempty"`
	TimeoutMS     int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`

	// Retry enables the retry coordinator. When false every request returns
	// its first outcome.
	Retry bool `mapstructure:"retry" yaml:"retry"`

	// LogRequests keeps a record of every physical attempt in the ledger so it
	// can be drained to the store.
	LogRequests bool `mapstructure:"log_requests" yaml:"log_requests"`

	RetryPolicy stripe.Policy `mapstructure:"retry_policy" yaml:"retry_policy"`
}

// ClientConfig converts the section into the client's construction options.
func (c StripeConfig) ClientConfig() stripe.Config {
	return stripe.Config{
		BaseURL:       c.BaseURL,
		SecretKey:     c.SecretKey,
		StripeVersion: c.StripeVersion,
		Proxy:         c.Proxy,
		TimeoutMS:     c.TimeoutMS,
		Retry:         c.Retry,
		LogRequests:   c.LogRequests,
		Policy:        c.RetryPolicy,
	}
}

// StoreConfig selects the database the download is written to.
type StoreConfig struct {
	// Driver is one of libsql, mysql, postgres.
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path,omitempty"`
	URL       string `mapstructure:"url" yaml:"url,omitempty"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
	DSN       string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// DownloadConfig controls the download scheduler.
type DownloadConfig struct {
	Objects           []string      `mapstructure:"objects" yaml:"objects"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
	PageSize          int           `mapstructure:"page_size" yaml:"page_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	ThrottlePoll      time.Duration `mapstructure:"throttle_poll" yaml:"throttle_poll"`
	LogDrainInterval  time.Duration `mapstructure:"log_drain_interval" yaml:"log_drain_interval"`

	// RequestLogFile, when set, mirrors drained attempt records to a rotating
	// NDJSON file.
	RequestLogFile       string `mapstructure:"request_log_file" yaml:"request_log_file,omitempty"`
	RequestLogMaxSizeMB  int    `mapstructure:"request_log_max_size_mb" yaml:"request_log_max_size_mb"`
	RequestLogMaxBackups int    `mapstructure:"request_log_max_backups" yaml:"request_log_max_backups"`

	// OnExhausted is abort or skip.
	OnExhausted string `mapstructure:"on_exhausted" yaml:"on_exhausted"`

	// RedactFields lists JSON paths (e.g. "email", "address.line1") removed
	// from every object before it is stored.
	RedactFields []string `mapstructure:"redact_fields" yaml:"redact_fields,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// StatusConfig configures the optional status server run next to a download.
type StatusConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr,omitempty"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.Stripe.SecretKey = redact(c.Stripe.SecretKey)
	c.Store.AuthToken = redact(c.Store.AuthToken)
	c.Store.DSN = redact(c.Store.DSN)
	return c
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:8] + "****"
}
