package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
	"github.com/tabledog/tdog-cli-sub000/internal/output"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// Check statuses.
const (
	checkOK      = "ok"
	checkWarn    = "warn"
	checkFail    = "fail"
	checkSkipped = "skipped"
)

var (
	doctorOffline bool
	doctorTimeout time.Duration
	doctorOutput  outputFlags
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check the runtime, the configuration, the store and the Stripe key.

The Stripe check sends one request with retries disabled. When a check fails
the exit code names the first failing area: configuration, database or
Stripe.`,
	Example: `  tdog doctor
  tdog doctor --offline --output-format json`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip the Stripe API check")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "Timeout of the Stripe API check")
	doctorOutput.register(doctorCmd, "table|json|markdown")
}

// doctor collects check results. The first failure decides the error.
type doctor struct {
	checks []output.Check
	err    *gferrors.ErrorEnvelope
}

func (d *doctor) add(name, status, detail string) {
	d.checks = append(d.checks, output.Check{Name: name, Status: status, Detail: detail})
}

func (d *doctor) fail(name, detail string, envelope *gferrors.ErrorEnvelope) {
	d.add(name, checkFail, detail)
	if d.err == nil {
		d.err = envelope
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, sink, err := doctorOutput.open(cmd.OutOrStdout(), "doctor")
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	d := &doctor{}
	d.checkRuntime()
	d.checkConfigDir()
	cfg := d.checkConfig(ctx)
	d.checkSecretKey(ctx, cfg)
	d.checkStore(ctx, cfg)
	d.checkStripe(ctx, cfg, doctorOffline, doctorTimeout)

	if err := writeReports(sink, format, output.ChecksReport(d.checks)); err != nil {
		return err
	}

	logger := observability.CLILogger
	if d.err != nil {
		if logger != nil {
			logger.Warn("Some checks failed. Review the output above for details.")
		}
		return d.err
	}
	if logger != nil {
		logger.Info("All checks passed", zap.Int("checks", len(d.checks)))
	}
	return nil
}

func (d *doctor) checkRuntime() {
	libs := crucible.GetVersion()
	detail := fmt.Sprintf("%s %s/%s, gofulmen %s, crucible %s",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, libs.Gofulmen, libs.Crucible)
	if libs.Gofulmen == "" || libs.Crucible == "" {
		d.add("runtime", checkWarn, detail)
		return
	}
	d.add("runtime", checkOK, detail)
}

func (d *doctor) checkConfigDir() {
	dir := config.DefaultConfigDir()
	if strings.TrimSpace(dir) == "" {
		d.add("config directory", checkWarn, "cannot resolve the config directory; use --config or TDOG_* variables")
		return
	}
	switch used := viper.ConfigFileUsed(); {
	case used != "":
		d.add("config directory", checkOK, fmt.Sprintf("%s (using %s)", dir, used))
	case fileExists(config.DefaultConfigPath()):
		d.add("config directory", checkOK, fmt.Sprintf("%s (config.yaml present)", dir))
	default:
		d.add("config directory", checkOK, fmt.Sprintf("%s (no config file, defaults and environment only)", dir))
	}
}

func (d *doctor) checkConfig(ctx context.Context) *config.Config {
	cfg, err := loadConfig(ctx, nil)
	if err != nil {
		d.fail("configuration", err.Error(), apperrors.WrapConfigInvalid(ctx, err, "invalid configuration"))
		return nil
	}
	d.add("configuration", checkOK, fmt.Sprintf("store %s, retry %t, on_exhausted %s",
		cfg.Store.Driver, cfg.Stripe.Retry, cfg.Download.OnExhausted))
	return cfg
}

func (d *doctor) checkSecretKey(ctx context.Context, cfg *config.Config) {
	const name = "stripe secret key"
	if cfg == nil {
		d.add(name, checkSkipped, "configuration not loaded")
		return
	}
	key := strings.TrimSpace(cfg.Stripe.SecretKey)
	if key == "" {
		d.fail(name, "not set (TDOG_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY)",
			apperrors.WrapConfigInvalid(ctx, errors.New("stripe.secret_key is empty"), "a Stripe secret key is required"))
		return
	}
	d.add(name, checkOK, fmt.Sprintf("%s (%s mode)", cfg.Redacted().Stripe.SecretKey, keyMode(key)))
}

func (d *doctor) checkStore(ctx context.Context, cfg *config.Config) {
	const name = "store"
	if cfg == nil {
		d.add(name, checkSkipped, "configuration not loaded")
		return
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		d.fail(name, causeOf(err), apperrors.EnsureEnvelope(err))
		return
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	detail := storeLocation(cfg.Store)
	runs, err := db.ListRuns(ctx, 1)
	if err != nil {
		d.fail(name, err.Error(), apperrors.WrapDatabaseError(ctx, err, "failed to list runs"))
		return
	}
	if len(runs) == 0 {
		detail += ", no runs yet"
	} else {
		detail += fmt.Sprintf(", last run %s %s %s", runs[0].ID, runs[0].Status, formatTimeAgo(runs[0].StartedAt))
	}
	d.add(name, checkOK, detail)
}

func (d *doctor) checkStripe(ctx context.Context, cfg *config.Config, offline bool, timeout time.Duration) {
	const name = "stripe api"
	switch {
	case cfg == nil:
		d.add(name, checkSkipped, "configuration not loaded")
		return
	case strings.TrimSpace(cfg.Stripe.SecretKey) == "":
		d.add(name, checkSkipped, "no secret key")
		return
	case offline:
		d.add(name, checkSkipped, "--offline")
		return
	}

	clientCfg := cfg.Stripe.ClientConfig()
	clientCfg.Retry = false
	clientCfg.LogRequests = false
	clientCfg.UserAgent = config.AppName + "/" + versionInfo.Version
	client, err := stripe.New(clientCfg, stripe.WithLogger(observability.CLILogger))
	if err != nil {
		d.fail(name, err.Error(), apperrors.WrapConfigInvalid(ctx, err, "invalid Stripe client configuration"))
		return
	}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	account, err := client.Account(reqCtx)
	if err != nil {
		d.fail(name, err.Error(), apperrors.WrapExternalService(ctx, err, "Stripe API check failed"))
		return
	}
	d.add(name, checkOK, fmt.Sprintf("account %s answered in %s", account.ID, time.Since(start).Round(time.Millisecond)))
}

func keyMode(key string) string {
	switch {
	case strings.Contains(key, "_test_"):
		return "test"
	case strings.Contains(key, "_live_"):
		return "live"
	default:
		return "unknown"
	}
}

// causeOf prefers the wrapped error of an envelope, which names the driver
// failure rather than the operation.
func causeOf(err error) string {
	var envelope *gferrors.ErrorEnvelope
	if errors.As(err, &envelope) {
		if original, ok := envelope.Original.(error); ok && original != nil {
			return original.Error()
		}
		return envelope.Message
	}
	return err.Error()
}

// storeLocation describes where the store lives without printing credentials.
func storeLocation(cfg config.StoreConfig) string {
	if cfg.Driver != config.DriverLibSQL {
		return cfg.Driver + " (dsn)"
	}
	if url := strings.TrimSpace(cfg.URL); url != "" {
		return "libsql " + url + " (remote)"
	}

	path := strings.TrimPrefix(strings.TrimSpace(cfg.Path), "file:")
	if path == ":memory:" {
		return "libsql in memory"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if info, err := os.Stat(abs); err == nil {
		return fmt.Sprintf("libsql %s (%s)", abs, formatFileSize(info.Size()))
	}
	return "libsql " + abs
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// formatFileSize renders a byte count with a binary unit.
func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d bytes", bytes)
	}
	value := float64(bytes) / unit
	for _, suffix := range []string{"KB", "MB", "GB"} {
		if value < unit || suffix == "GB" {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
		value /= unit
	}
	return fmt.Sprintf("%d bytes", bytes)
}

// formatTimeAgo renders t relative to now in the largest whole unit.
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "at an unknown time"
	}
	d := time.Since(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "min")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}
