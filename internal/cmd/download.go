package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/core/engine"
	"github.com/tabledog/tdog-cli-sub000/internal/core/store"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/metrics"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
	"github.com/tabledog/tdog-cli-sub000/internal/output"
	"github.com/tabledog/tdog-cli-sub000/internal/server"
	"github.com/tabledog/tdog-cli-sub000/internal/server/handlers"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

var (
	downloadObjects     []string
	downloadConcurrency int
	downloadOnExhausted string
	downloadStatusAddr  string
	downloadNoRetry     bool
	downloadLogFile     string
	downloadRedact      []string
	downloadOutput      outputFlags
)

var downloadFlagKeys = map[string]string{
	"objects":          "download.objects",
	"concurrency":      "download.concurrency",
	"on-exhausted":     "download.on_exhausted",
	"status-addr":      "status.addr",
	"request-log-file": "download.request_log_file",
	"redact":           "download.redact_fields",
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a Stripe account into the store",
	Long: `Download every configured object type of the account behind the secret
key into the store.

Requests that fail with a network error, a 5xx or a 429 are retried according
to stripe.retry_policy. While any request waits out a 429 no new page request
is started. Each physical attempt is drained to the request log of the run.`,
	Example: `  TDOG_STRIPE_SECRET_KEY=sk_test_... tdog download
  tdog download --objects customers,invoices --on-exhausted skip
  tdog download --status-addr 127.0.0.1:9464 --output-format json`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	f := downloadCmd.Flags()
	f.StringSliceVar(&downloadObjects, "objects", nil, "Object types to download (default all)")
	f.IntVar(&downloadConcurrency, "concurrency", 0, "Object types downloaded in parallel")
	f.StringVar(&downloadOnExhausted, "on-exhausted", "", "When retries run out: abort|skip")
	f.StringVar(&downloadStatusAddr, "status-addr", "", "Serve /health, /stats and /metrics on this address while downloading")
	f.BoolVar(&downloadNoRetry, "no-retry", false, "Return the first outcome of every request")
	f.StringVar(&downloadLogFile, "request-log-file", "", "Mirror attempt records to a rotating NDJSON file")
	f.StringSliceVar(&downloadRedact, "redact", nil, "JSON paths removed from objects before they are stored")
	downloadOutput.register(downloadCmd, "table|json|markdown")
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := observability.CLILogger

	overrides := flagOverrides(cmd, downloadFlagKeys)
	if downloadNoRetry {
		overrides["stripe.retry"] = false
	}
	cfg, err := loadConfig(cmd.Context(), overrides)
	if err != nil {
		return apperrors.WrapConfigInvalid(cmd.Context(), err, "invalid configuration")
	}
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		return apperrors.WrapConfigInvalid(cmd.Context(), errors.New("stripe.secret_key is empty"),
			"a Stripe secret key is required (set TDOG_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY)")
	}
	types, err := cfg.Download.ObjectTypes()
	if err != nil {
		return apperrors.WrapConfigInvalid(cmd.Context(), err, "invalid object types")
	}

	format, sink, err := downloadOutput.open(cmd.OutOrStdout(), "download")
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	finalized := make(chan struct{})
	defer close(finalized)
	stopSignals := watchShutdownSignals(cmd.Context(), logger, cancel, finalized)
	defer stopSignals()

	registry := metrics.New()
	metrics.SetDefault(registry)

	clientCfg := cfg.Stripe.ClientConfig()
	clientCfg.UserAgent = fmt.Sprintf("%s/%s", config.AppName, versionInfo.Version)
	client, err := stripe.New(clientCfg, stripe.WithLogger(logger), stripe.WithObserver(registry))
	if err != nil {
		return apperrors.WrapConfigInvalid(ctx, err, "invalid Stripe client configuration")
	}
	if err := registry.WatchLedger(client.Ledger()); err != nil {
		return apperrors.WrapInternal(ctx, err, "failed to register ledger metrics")
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	account, err := client.Account(ctx)
	if err != nil {
		return remoteError(ctx, err, "failed to fetch Stripe account")
	}
	if err := db.SaveAccount(ctx, account); err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "failed to save account")
	}

	run := &core.DownloadRun{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		ObjectTypes: objectTypeNames(types),
	}
	if err := db.CreateRun(ctx, run); err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "failed to create run")
	}
	logger.Info("Starting download",
		zap.String("run_id", run.ID),
		zap.String("account_id", account.ID),
		zap.Strings("object_types", run.ObjectTypes),
		zap.Bool("retry", cfg.Stripe.Retry))

	drainer := &engine.LogDrainer{
		Ledger:   client.Ledger(),
		Store:    db,
		RunID:    run.ID,
		Interval: cfg.Download.LogDrainInterval,
		Logger:   logger,
	}
	if path := strings.TrimSpace(cfg.Download.RequestLogFile); path != "" {
		file := engine.NewRequestLogFile(path, cfg.Download.RequestLogMaxSizeMB, cfg.Download.RequestLogMaxBackups)
		defer file.Close() // nolint:errcheck // best-effort cleanup
		drainer.Writer = file
	}

	downloader := &engine.Downloader{
		Client:       client,
		Store:        db,
		Throttle:     engine.NewThrottle(cfg.Download.RequestsPerSecond, cfg.Download.Burst, client.Ledger(), cfg.Download.ThrottlePoll),
		Concurrency:  cfg.Download.Concurrency,
		PageSize:     cfg.Download.PageSize,
		OnExhausted:  cfg.Download.OnExhausted,
		RedactFields: cfg.Download.RedactFields,
		Logger:       logger,
	}

	auxCtx, stopAux := context.WithCancel(ctx)
	defer stopAux()
	var aux errgroup.Group
	aux.Go(func() error { return drainer.Run(auxCtx) })

	if addr := strings.TrimSpace(cfg.Status.Addr); addr != "" {
		observability.InitServerLogger(config.AppName, cfg.Logging.Level)
		srv := newStatusServer(cfg, db, client, registry, func() *handlers.RunProgress {
			return &handlers.RunProgress{
				RunID:       run.ID,
				AccountID:   run.AccountID,
				StartedAt:   run.StartedAt,
				ObjectTypes: run.ObjectTypes,
				Objects:     downloader.Objects(),
				LogDrained:  drainer.Drained(),
			}
		})
		logger.Info("Status server listening", zap.String("addr", addr))
		aux.Go(func() error { return srv.Run(auxCtx) })
	}

	results, runErr := downloader.Run(ctx, run.ID, account.ID, types)

	stopAux()
	if err := aux.Wait(); err != nil {
		logger.Warn("Background task failed", zap.Error(err))
	}

	stats := client.Ledger().Snapshot()
	run.Status = runStatus(ctx, results, runErr)
	run.Objects = downloader.Objects()
	run.Requests = drainer.Drained()
	run.Total429 = stats.Total429Responses
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := db.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Failed to record run result", zap.String("run_id", run.ID), zap.Error(err))
	}

	logger.Info("Download finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int64("objects", run.Objects),
		zap.Int64("requests", run.Requests),
		zap.Int64("total_429", run.Total429))

	summary := &core.RunSummary{Run: *run, Results: results}
	if err := writeReports(sink, format, output.RunSummaryReport(summary), output.StatsReport(stats)); err != nil {
		return err
	}

	if runErr == nil {
		return nil
	}
	return remoteError(ctx, runErr, "download failed")
}

func newStatusServer(cfg *config.Config, db *store.Store, client *stripe.Client, registry *metrics.Registry, progress func() *handlers.RunProgress) *server.Server {
	return server.New(server.Options{
		Addr:            cfg.Status.Addr,
		ReadTimeout:     cfg.Status.ReadTimeout,
		WriteTimeout:    cfg.Status.WriteTimeout,
		ShutdownTimeout: cfg.Status.ShutdownTimeout,
		Version:         versionInfo.Version,
		Ledger:          client.Ledger(),
		Progress:        progress,
		Metrics:         registry,
		Checks: map[string]handlers.HealthChecker{
			"store": handlers.CheckerFunc(db.DB.PingContext),
		},
	})
}

// watchShutdownSignals cancels the download on SIGINT or SIGTERM and holds
// the shutdown sequence until the run has been recorded.
func watchShutdownSignals(ctx context.Context, logger *logging.Logger, cancel context.CancelFunc, finalized <-chan struct{}) context.CancelFunc {
	signals.OnShutdown(func(sctx context.Context) error {
		logger.Warn("Interrupted, finishing the current run")
		cancel()
		select {
		case <-finalized:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	listenCtx, stop := context.WithCancel(ctx)
	go func() {
		if err := signals.Listen(listenCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Signal handler error", zap.Error(err))
		}
	}()
	return stop
}

// runStatus derives the final status of a run from the scheduler outcome.
func runStatus(ctx context.Context, results []core.ObjectTypeResult, err error) core.RunStatus {
	switch {
	case err == nil:
		for _, result := range results {
			if result.Skipped {
				return core.RunStatusPartial
			}
		}
		return core.RunStatusCompleted
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return core.RunStatusCanceled
	default:
		return core.RunStatusFailed
	}
}

// remoteError wraps a failed download or Stripe call for the exit path.
// Exhausted retries keep their class and attempt details.
func remoteError(ctx context.Context, err error, message string) error {
	if exhausted, ok := stripe.AsExhausted(err); ok {
		return apperrors.WrapExhausted(ctx, exhausted)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.WrapInternal(ctx, err, "download canceled")
	}
	return apperrors.WrapExternalService(ctx, err, message)
}

func objectTypeNames(types []stripe.ObjectType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name
	}
	return names
}
