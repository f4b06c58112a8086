package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("download run not found")

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, run *core.DownloadRun) error {
	if err := s.ready(); err != nil {
		return err
	}
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if run.Status == "" {
		run.Status = core.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO download_runs (id, account_id, status, object_types, started_at)
		VALUES (?, ?, ?, ?, ?)
	`), run.ID, run.AccountID, string(run.Status), strings.Join(run.ObjectTypes, ","), run.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, run *core.DownloadRun) error {
	if err := s.ready(); err != nil {
		return err
	}
	if run == nil {
		return errors.New("run is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	result, err := s.DB.ExecContext(ctx, s.rebind(`
		UPDATE download_runs
		SET account_id = ?, status = ?, finished_at = ?, objects = ?, requests = ?, total_429 = ?, error_message = ?
		WHERE id = ?
	`), run.AccountID, string(run.Status), finished.UnixMilli(), run.Objects, run.Requests, run.Total429, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	run.FinishedAt = &finished
	return nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*core.DownloadRun, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, s.rebind(runSelect+" WHERE id = ?"), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.DownloadRun, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("%s ORDER BY started_at DESC LIMIT %d", runSelect, limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	runs := []core.DownloadRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

const runSelect = `SELECT id, account_id, status, object_types, started_at, finished_at, objects, requests, total_429, error_message FROM download_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.DownloadRun, error) {
	var (
		run         core.DownloadRun
		accountID   sql.NullString
		status      string
		objectTypes string
		startedAt   int64
		finishedAt  sql.NullInt64
		errMessage  sql.NullString
	)
	if err := row.Scan(&run.ID, &accountID, &status, &objectTypes, &startedAt, &finishedAt, &run.Objects, &run.Requests, &run.Total429, &errMessage); err != nil {
		return nil, err
	}

	run.AccountID = accountID.String
	run.Status = core.RunStatus(status)
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	run.Error = errMessage.String
	if objectTypes != "" {
		run.ObjectTypes = strings.Split(objectTypes, ",")
	}
	if finishedAt.Valid {
		value := time.UnixMilli(finishedAt.Int64).UTC()
		run.FinishedAt = &value
	}
	return &run, nil
}
