package cmd

import (
	"context"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	"github.com/tabledog/tdog-cli-sub000/internal/core/store"
	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
)

// openStore opens the configured database and brings its schema up to date.
func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "failed to open store")
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.WrapDatabaseError(ctx, err, "failed to migrate store")
	}

	return db, nil
}

// openConfiguredStore loads the configuration and opens its store.
func openConfiguredStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.WrapConfigInvalid(ctx, err, "invalid configuration")
	}
	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
