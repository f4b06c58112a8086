package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabledog/tdog-cli-sub000/internal/core/store"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/output"
)

// requestFilter holds the selection flags shared by the requests subcommands.
type requestFilter struct {
	all     bool
	runID   string
	since   string
	outcome string
	limit   int
}

func (f *requestFilter) register(cmd *cobra.Command, withLimit bool) {
	cmd.Flags().BoolVar(&f.all, "all", false, "Select attempts of every run")
	cmd.Flags().StringVar(&f.runID, "run", "", "Select attempts of one run")
	cmd.Flags().StringVar(&f.since, "since", "", "Select attempts that ended after a duration ago (24h) or an RFC3339 time")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "Filter by outcome: ok|429|http|network")
	if withLimit {
		cmd.Flags().IntVar(&f.limit, "limit", 100, "Maximum attempts to list (0 for no limit)")
	}
}

func (f *requestFilter) query(now time.Time) (store.RequestLogQuery, error) {
	since, err := parseSince(f.since, now)
	if err != nil {
		return store.RequestLogQuery{}, err
	}
	q := store.RequestLogQuery{
		All:     f.all,
		RunID:   strings.TrimSpace(f.runID),
		Since:   since,
		Outcome: strings.ToLower(strings.TrimSpace(f.outcome)),
		Limit:   f.limit,
	}
	if err := q.Validate(); err != nil {
		return store.RequestLogQuery{}, err
	}
	return q, nil
}

// parseSince accepts a look-back duration such as 90m or an RFC3339 time.
func parseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("--since must be positive: %s", value)
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be a duration or RFC3339 time: %s", value)
	}
	return t.UTC(), nil
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Inspect the request log of past runs",
	Long: `Inspect the physical HTTP attempts recorded during downloads.

Every subcommand needs --all, --run or --since to select attempts.`,
}

var (
	requestsListFilter requestFilter
	requestsListOutput outputFlags
)

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := requestsListFilter.query(time.Now().UTC())
		if err != nil {
			return apperrors.WrapInvalidInput(cmd.Context(), err, err.Error())
		}

		format, sink, err := requestsListOutput.open(cmd.OutOrStdout(), "requests.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, _, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		records, err := db.ListRequestLog(cmd.Context(), query)
		if err != nil {
			return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to list request log")
		}
		return writeReports(sink, format, output.RequestsReport(records))
	},
}

var (
	requestsSummaryFilter requestFilter
	requestsSummaryOutput outputFlags
)

var requestsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recorded attempts by outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := requestsSummaryFilter.query(time.Now().UTC())
		if err != nil {
			return apperrors.WrapInvalidInput(cmd.Context(), err, err.Error())
		}

		format, sink, err := requestsSummaryOutput.open(cmd.OutOrStdout(), "requests.summary")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, _, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		summary, err := db.RequestLogSummary(cmd.Context(), query)
		if err != nil {
			return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to summarize request log")
		}
		return writeReports(sink, format, output.RequestSummaryReport(summary))
	},
}

var (
	requestsResetFilter requestFilter
	requestsResetYes    bool
	requestsResetDryRun bool
	requestsResetOutput outputFlags
)

var requestsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete recorded attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := requestsResetFilter.query(time.Now().UTC())
		if err != nil {
			return apperrors.WrapInvalidInput(cmd.Context(), err, err.Error())
		}
		if query.All && !requestsResetYes && !requestsResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		format, sink, err := requestsResetOutput.open(cmd.OutOrStdout(), "requests.reset", output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, _, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountRequestLog(cmd.Context(), query)
		if err != nil {
			return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to count request log")
		}
		if requestsResetDryRun {
			return writeResetResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.ResetRequestLog(cmd.Context(), query)
		if err != nil {
			return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to reset request log")
		}
		return writeResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d request log record(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d request log record(s)\n", deleted, matched)
	return err
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.AddCommand(requestsListCmd, requestsSummaryCmd, requestsResetCmd)

	requestsListFilter.register(requestsListCmd, true)
	requestsListOutput.register(requestsListCmd, "table|json|markdown")

	requestsSummaryFilter.register(requestsSummaryCmd, false)
	requestsSummaryOutput.register(requestsSummaryCmd, "table|json|markdown")

	requestsResetFilter.register(requestsResetCmd, false)
	requestsResetCmd.Flags().BoolVar(&requestsResetYes, "yes", false, "Confirm deleting every record")
	requestsResetCmd.Flags().BoolVar(&requestsResetDryRun, "dry-run", false, "Show what would be deleted")
	requestsResetOutput.register(requestsResetCmd, "table|json")
}
