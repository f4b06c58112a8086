//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: config.DriverLibSQL,
		Path:   "file:" + filepath.Join(t.TempDir(), "nested", "tdog.db"),
	}

	first, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Migrate(ctx))
	require.Equal(t, 1, first.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, first.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	require.Contains(t, journalMode, "wal")

	account := &stripe.Account{ID: "acct_reopen", Country: "DE", Raw: json.RawMessage(`{"id":"acct_reopen"}`)}
	require.NoError(t, first.SaveAccount(ctx, account))
	require.NoError(t, first.Close())

	second, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	require.NoError(t, second.Migrate(ctx), "migrations must be repeatable")

	var busyTimeout int
	require.NoError(t, second.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	require.GreaterOrEqual(t, busyTimeout, 1000)

	loaded, err := second.GetAccount(ctx, "acct_reopen")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "DE", loaded.Country)
}
