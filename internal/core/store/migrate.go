package store

import (
	"context"
	"fmt"
)

func schemaStatements(d Dialect) []string {
	key := d.keyType()
	i64 := d.int64Type()

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS download_runs (
		id %[1]s PRIMARY KEY,
		account_id %[1]s,
		status %[1]s NOT NULL,
		object_types TEXT NOT NULL,
		started_at %[2]s NOT NULL,
		finished_at %[2]s,
		objects %[2]s NOT NULL DEFAULT 0,
		requests %[2]s NOT NULL DEFAULT 0,
		total_429 %[2]s NOT NULL DEFAULT 0,
		error_message TEXT%[3]s
	)`, key, i64, d.inlineIndex("INDEX idx_download_runs_started (started_at)")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS objects (
		account_id %[1]s NOT NULL,
		object_type %[1]s NOT NULL,
		id %[1]s NOT NULL,
		created %[2]s NOT NULL DEFAULT 0,
		data %[3]s NOT NULL,
		run_id %[1]s NOT NULL,
		updated_at %[2]s NOT NULL,
		PRIMARY KEY (account_id, object_type, id)%[4]s
	)`, key, i64, d.docType(), d.inlineIndex("INDEX idx_objects_run (run_id)")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS request_log (
		id %[1]s,
		run_id %[2]s NOT NULL,
		start_ms %[3]s NOT NULL,
		end_ms %[3]s NOT NULL,
		duration_ms %[3]s NOT NULL,
		bytes %[3]s NOT NULL DEFAULT 0,
		status INTEGER,
		network_error INTEGER NOT NULL DEFAULT 0%[4]s
	)`, d.autoIncrementPK(), key, i64,
			d.inlineIndex("INDEX idx_request_log_run (run_id)")+d.inlineIndex("INDEX idx_request_log_end (end_ms)")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS accounts (
		id %[1]s PRIMARY KEY,
		email TEXT,
		country TEXT,
		default_currency TEXT,
		business_name TEXT,
		charges_enabled INTEGER NOT NULL DEFAULT 0,
		payouts_enabled INTEGER NOT NULL DEFAULT 0,
		created %[2]s NOT NULL DEFAULT 0,
		raw %[3]s NOT NULL,
		updated_at %[2]s NOT NULL
	)`, key, i64, d.docType()),
	}

	return append(stmts, d.indexes(
		`CREATE INDEX IF NOT EXISTS idx_download_runs_started ON download_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_objects_run ON objects(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_run ON request_log(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_request_log_end ON request_log(end_ms)`,
	)...)
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	return nil
}
