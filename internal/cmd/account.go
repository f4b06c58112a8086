package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	"github.com/tabledog/tdog-cli-sub000/internal/core/store"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
	"github.com/tabledog/tdog-cli-sub000/internal/output"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

var (
	accountCached bool
	accountID     string
	accountOutput outputFlags
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the Stripe account behind the configured key",
	Long: `Fetch the account behind the configured secret key and store it.

With --cached the most recently stored account (or the one named by
--account) is shown instead and no request is made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, sink, err := accountOutput.open(cmd.OutOrStdout(), "account")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		db, cfg, err := openConfiguredStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if accountCached {
			account, err := storedAccount(ctx, db, accountID)
			if err != nil {
				return err
			}
			return writeReports(sink, format, output.AccountReport(account))
		}

		clientCfg := cfg.Stripe.ClientConfig()
		clientCfg.UserAgent = config.AppName + "/" + versionInfo.Version
		client, err := stripe.New(clientCfg, stripe.WithLogger(observability.CLILogger))
		if err != nil {
			return apperrors.WrapConfigInvalid(ctx, err, "invalid Stripe client configuration")
		}

		account, err := client.Account(ctx)
		if err != nil {
			return remoteError(ctx, err, "failed to fetch Stripe account")
		}
		if err := db.SaveAccount(ctx, account); err != nil {
			return apperrors.WrapDatabaseError(ctx, err, "failed to save account")
		}
		observability.CLILogger.Debug("Saved account", zap.String("account_id", account.ID))

		return writeReports(sink, format, output.AccountReport(account))
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.Flags().BoolVar(&accountCached, "cached", false, "Show the stored account without calling Stripe")
	accountCmd.Flags().StringVar(&accountID, "account", "", "Account id to show with --cached (default most recent)")
	accountOutput.register(accountCmd, "table|json|markdown")
}

// storedAccount loads the account with id, or the most recently saved one
// when id is empty.
func storedAccount(ctx context.Context, db *store.Store, id string) (*stripe.Account, error) {
	var (
		account *stripe.Account
		err     error
	)
	if id = strings.TrimSpace(id); id != "" {
		account, err = db.GetAccount(ctx, id)
	} else {
		account, err = db.LatestAccount(ctx)
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "failed to load account")
	}
	if account != nil {
		return account, nil
	}
	if id != "" {
		return nil, apperrors.NewNotFoundError("account " + id + " is not stored")
	}
	return nil, apperrors.NewNotFoundError("no stored account; run `tdog account` or `tdog download` first")
}
