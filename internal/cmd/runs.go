package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/core/store"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/output"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past download runs",
}

var (
	runsListLimit  int
	runsListOutput outputFlags
)

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent download runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, sink, err := runsListOutput.open(cmd.OutOrStdout(), "runs.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, _, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		runs, err := db.ListRuns(cmd.Context(), runsListLimit)
		if err != nil {
			return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to list runs")
		}
		return writeReports(sink, format, output.RunsReport(runs))
	},
}

var runsShowOutput outputFlags

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its request log summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, sink, err := runsShowOutput.open(cmd.OutOrStdout(), "run." + args[0])
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, _, err := openConfiguredStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		run, err := db.GetRun(ctx, args[0])
		if errors.Is(err, store.ErrRunNotFound) {
			return apperrors.NewNotFoundError("run " + args[0] + " not found")
		}
		if err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "failed to load run")
		}

		summary, err := db.RequestLogSummary(ctx, store.RequestLogQuery{RunID: run.ID})
		if err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "failed to summarize request log")
		}

		return writeReports(sink, format,
			output.RunsReport([]core.DownloadRun{*run}),
			output.RequestSummaryReport(summary))
	},
}

var (
	objectsAccount string
	objectsOutput  outputFlags
)

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "Count stored objects per type",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, sink, err := objectsOutput.open(cmd.OutOrStdout(), "objects")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, _, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		counts, err := db.CountObjects(cmd.Context(), objectsAccount)
		if err != nil {
			return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to count objects")
		}
		return writeReports(sink, format, output.ObjectCountsReport(counts))
	},
}

func init() {
	rootCmd.AddCommand(runsCmd, objectsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd)

	runsListCmd.Flags().IntVar(&runsListLimit, "limit", 20, "Maximum runs to list")
	runsListOutput.register(runsListCmd, "table|json|markdown")
	runsShowOutput.register(runsShowCmd, "table|json|markdown")

	objectsCmd.Flags().StringVar(&objectsAccount, "account", "", "Only count objects of this account id")
	objectsOutput.register(objectsCmd, "table|json|markdown")
}
