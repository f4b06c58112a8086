// Package config provides centralized configuration management for tdog.
// Layers, lowest precedence first:
// Layer 1: built-in defaults (SetDefaults)
// Layer 2: user config file ($XDG_CONFIG_HOME/tdog/config.yaml or ./config)
// Layer 3: TDOG_* environment variables and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

const (
	// AppName names the config and data directories.
	AppName = "tdog"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TDOG"
)

// Store drivers.
const (
	DriverLibSQL   = "libsql"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Exhaustion policies for the download scheduler.
const (
	OnExhaustedAbort = "abort"
	OnExhaustedSkip  = "skip"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers default configuration values on v.
func SetDefaults(v *viper.Viper) {
	policy := stripe.DefaultPolicy()

	// Stripe defaults
	v.SetDefault("stripe.base_url", stripe.DefaultBaseURL)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.stripe_version", stripe.DefaultVersion)
	v.SetDefault("stripe.proxy", "")
	v.SetDefault("stripe.timeout_ms", 60000)
	v.SetDefault("stripe.retry", true)
	v.SetDefault("stripe.log_requests", true)
	v.SetDefault("stripe.retry_policy.max_network_errors", policy.MaxNetworkErrors)
	v.SetDefault("stripe.retry_policy.network_retry_wait", policy.NetworkRetryWait.String())
	v.SetDefault("stripe.retry_policy.max_rate_limit_errors", policy.MaxRateLimitErrors)
	v.SetDefault("stripe.retry_policy.rate_limit_wait_min", policy.RateLimitWaitMin.String())
	v.SetDefault("stripe.retry_policy.rate_limit_wait_max", policy.RateLimitWaitMax.String())
	v.SetDefault("stripe.retry_policy.max_http_errors", policy.MaxHTTPErrors)
	v.SetDefault("stripe.retry_policy.http_error_wait", policy.HTTPErrorWait.String())

	// Store defaults
	v.SetDefault("store.driver", DriverLibSQL)
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.dsn", "")

	// Download defaults
	v.SetDefault("download.objects", []string{})
	v.SetDefault("download.concurrency", 4)
	v.SetDefault("download.page_size", stripe.MaxPageSize)
	v.SetDefault("download.requests_per_second", 20.0)
	v.SetDefault("download.burst", 4)
	v.SetDefault("download.throttle_poll", "250ms")
	v.SetDefault("download.log_drain_interval", "2s")
	v.SetDefault("download.request_log_file", "")
	v.SetDefault("download.request_log_max_size_mb", 50)
	v.SetDefault("download.request_log_max_backups", 3)
	v.SetDefault("download.on_exhausted", OnExhaustedAbort)
	v.SetDefault("download.redact_fields", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "simple")

	// Status server defaults
	v.SetDefault("status.addr", "")
	v.SetDefault("status.read_timeout", "10s")
	v.SetDefault("status.write_timeout", "10s")
	v.SetDefault("status.shutdown_timeout", "5s")
}

// BindEnv enables TDOG_* overrides on v. Nested keys map with underscores,
// so TDOG_STRIPE_SECRET_KEY sets stripe.secret_key. STRIPE_SECRET_KEY is
// accepted as a fallback for the key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("stripe.secret_key", EnvPrefix+"_STRIPE_SECRET_KEY", "STRIPE_SECRET_KEY")
}

// Load decodes v into a Config, applies runtimeOverrides (dotted keys or
// nested maps), validates the result and makes it available through
// GetConfig. A nil v uses the global viper instance.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for _, overrides := range runtimeOverrides {
		applyOverrides(v, "", overrides)
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if cfg.Store.Driver == DriverLibSQL && strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.Download.Objects = normalizeObjects(cfg.Download.Objects)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func applyOverrides(v *viper.Viper, prefix string, overrides map[string]any) {
	for key, value := range overrides {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			applyOverrides(v, path, nested)
			continue
		}
		v.Set(path, value)
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []error

	if c.Stripe.TimeoutMS < 0 {
		problems = append(problems, errors.New("stripe.timeout_ms must not be negative"))
	}
	if p := c.Stripe.RetryPolicy; p.RateLimitWaitMax > 0 && p.RateLimitWaitMax < p.RateLimitWaitMin {
		problems = append(problems, errors.New("stripe.retry_policy.rate_limit_wait_max must be >= rate_limit_wait_min"))
	}

	switch c.Store.Driver {
	case DriverLibSQL:
		if strings.TrimSpace(c.Store.Path) == "" && strings.TrimSpace(c.Store.URL) == "" {
			problems = append(problems, errors.New("store.path or store.url is required for libsql"))
		}
	case DriverMySQL, DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			problems = append(problems, fmt.Errorf("store.dsn is required for %s", c.Store.Driver))
		}
	default:
		problems = append(problems, fmt.Errorf("unsupported store.driver %q", c.Store.Driver))
	}

	if c.Download.Concurrency < 1 {
		problems = append(problems, errors.New("download.concurrency must be at least 1"))
	}
	if c.Download.PageSize < 1 || c.Download.PageSize > stripe.MaxPageSize {
		problems = append(problems, fmt.Errorf("download.page_size must be between 1 and %d", stripe.MaxPageSize))
	}
	if c.Download.RequestsPerSecond < 0 {
		problems = append(problems, errors.New("download.requests_per_second must not be negative"))
	}
	if c.Download.ThrottlePoll <= 0 {
		problems = append(problems, errors.New("download.throttle_poll must be positive"))
	}
	if c.Download.LogDrainInterval <= 0 {
		problems = append(problems, errors.New("download.log_drain_interval must be positive"))
	}
	if c.Download.OnExhausted != OnExhaustedAbort && c.Download.OnExhausted != OnExhaustedSkip {
		problems = append(problems, fmt.Errorf("download.on_exhausted must be %q or %q", OnExhaustedAbort, OnExhaustedSkip))
	}
	for _, name := range c.Download.Objects {
		if _, ok := stripe.LookupObjectType(name); !ok {
			problems = append(problems, fmt.Errorf("download.objects: unknown object type %q", name))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("invalid logging.level %q", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// ObjectTypes resolves the configured object types, defaulting to every
// registered type.
func (c DownloadConfig) ObjectTypes() ([]stripe.ObjectType, error) {
	if len(c.Objects) == 0 {
		return slices.Clone(stripe.ObjectTypes), nil
	}
	out := make([]stripe.ObjectType, 0, len(c.Objects))
	for _, name := range c.Objects {
		t, ok := stripe.LookupObjectType(name)
		if !ok {
			return nil, fmt.Errorf("unknown object type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func normalizeObjects(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
