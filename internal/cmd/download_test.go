package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

func TestRunStatus(t *testing.T) {
	live := context.Background()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	ok := []core.ObjectTypeResult{{Type: "customers"}, {Type: "products"}}
	skipped := []core.ObjectTypeResult{{Type: "customers"}, {Type: "products", Skipped: true}}

	require.Equal(t, core.RunStatusCompleted, runStatus(live, ok, nil))
	require.Equal(t, core.RunStatusPartial, runStatus(live, skipped, nil))
	require.Equal(t, core.RunStatusCanceled, runStatus(canceled, ok, fmt.Errorf("download customers: %w", context.Canceled)))
	require.Equal(t, core.RunStatusFailed, runStatus(live, ok, errors.New("boom")))
	require.Equal(t, core.RunStatusFailed, runStatus(canceled, ok, errors.New("store closed")))
}

func TestExitCodeFor(t *testing.T) {
	exhausted := &stripe.ExhaustedError{Class: stripe.ClassRateLimited, Attempts: 21}

	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(exhausted))
	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(fmt.Errorf("download: %w", exhausted)))
	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(apperrors.WrapExhausted(context.Background(), exhausted)))
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(apperrors.WrapConfigInvalid(context.Background(), errors.New("bad"), "invalid configuration")))
	require.Equal(t, foundry.ExitDatabaseUnavailable, ExitCodeFor(apperrors.WrapDatabaseError(context.Background(), errors.New("locked"), "failed to open store")))
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(errors.New("boom")))
}

func TestRemoteError(t *testing.T) {
	ctx := context.Background()
	exhausted := &stripe.ExhaustedError{Class: stripe.ClassNetwork, Attempts: 6, URL: "https://api.stripe.com/v1/customers"}

	err := remoteError(ctx, fmt.Errorf("list customers page 1: %w", exhausted), "download failed")
	var envelope *gferrors.ErrorEnvelope
	require.ErrorAs(t, err, &envelope)
	require.Equal(t, apperrors.CodeRetriesExhausted, envelope.Code)

	err = remoteError(ctx, errors.New("connection refused"), "failed to fetch Stripe account")
	require.ErrorAs(t, err, &envelope)
	require.Equal(t, apperrors.CodeExternalService, envelope.Code)
	require.Equal(t, "failed to fetch Stripe account", envelope.Message)
}

func TestFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().StringSlice("objects", nil, "")
	cmd.Flags().Int("concurrency", 0, "")
	cmd.Flags().String("on-exhausted", "", "")
	cmd.Flags().String("status-addr", "", "")

	require.NoError(t, cmd.Flags().Parse([]string{"--objects", "customers,invoices", "--on-exhausted", " skip "}))

	overrides := flagOverrides(cmd, map[string]string{
		"objects":      "download.objects",
		"concurrency":  "download.concurrency",
		"on-exhausted": "download.on_exhausted",
		"status-addr":  "status.addr",
	})
	require.Equal(t, map[string]any{
		"download.objects":      []string{"customers", "invoices"},
		"download.on_exhausted": "skip",
	}, overrides)
}

func TestObjectTypeNames(t *testing.T) {
	require.Equal(t, []string{"customers", "products"}, objectTypeNames([]stripe.ObjectType{
		{Name: "customers", Path: "/v1/customers"},
		{Name: "products", Path: "/v1/products"},
	}))
	require.Empty(t, objectTypeNames(nil))
}
