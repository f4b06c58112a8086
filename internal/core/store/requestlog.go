package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// Outcome filters for request log queries.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "429"
	OutcomeHTTPError   = "http"
	OutcomeNetwork     = "network"
)

// RequestLogQuery selects persisted attempts.
type RequestLogQuery struct {
	All     bool
	RunID   string
	Since   time.Time
	Outcome string
	Limit   int
}

func (q RequestLogQuery) Validate() error {
	switch q.Outcome {
	case "", OutcomeOK, OutcomeRateLimited, OutcomeHTTPError, OutcomeNetwork:
	default:
		return fmt.Errorf("unknown outcome %q (want ok, 429, http or network)", q.Outcome)
	}
	if q.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.RunID) != "" {
		return nil
	}
	if !q.Since.IsZero() {
		return nil
	}
	return errors.New("must specify --all, --run, or --since")
}

func (q RequestLogQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var conds []string
	var args []any
	if !q.All {
		if runID := strings.TrimSpace(q.RunID); runID != "" {
			conds = append(conds, "run_id = ?")
			args = append(args, runID)
		}
		if !q.Since.IsZero() {
			conds = append(conds, "end_ms >= ?")
			args = append(args, q.Since.UnixMilli())
		}
	}

	switch q.Outcome {
	case OutcomeOK:
		conds = append(conds, "status = 200")
	case OutcomeRateLimited:
		conds = append(conds, "status = 429")
	case OutcomeHTTPError:
		conds = append(conds, "network_error = 0 AND status <> 200 AND status <> 429")
	case OutcomeNetwork:
		conds = append(conds, "network_error = 1")
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// AppendRequestLog persists drained attempt records for a run.
func (s *Store) AppendRequestLog(ctx context.Context, runID string, records []stripe.ReqLog) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO request_log (run_id, start_ms, end_ms, duration_ms, bytes, status, network_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	defer stmt.Close() // nolint:errcheck // best-effort cleanup

	for _, record := range records {
		var status sql.NullInt64
		if record.Status != nil {
			status = sql.NullInt64{Int64: int64(*record.Status), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			record.Start.UnixMilli(),
			record.End.UnixMilli(),
			record.DurationMS,
			record.Bytes,
			status,
			boolToInt(record.NetworkError),
		); err != nil {
			return fmt.Errorf("append request log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

func (s *Store) ListRequestLog(ctx context.Context, q RequestLogQuery) ([]core.RequestRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	limit := ""
	if q.Limit > 0 {
		limit = fmt.Sprintf("LIMIT %d", q.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT id, run_id, start_ms, end_ms, duration_ms, bytes, status, network_error
		FROM request_log
		%s
		ORDER BY id
		%s
	`, where, limit)), args...)
	if err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []core.RequestRecord{}
	for rows.Next() {
		var (
			record       core.RequestRecord
			startMS      int64
			endMS        int64
			status       sql.NullInt64
			networkError int64
		)
		if err := rows.Scan(&record.ID, &record.RunID, &startMS, &endMS, &record.DurationMS, &record.Bytes, &status, &networkError); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}

		record.Start = time.UnixMilli(startMS).UTC()
		record.End = time.UnixMilli(endMS).UTC()
		record.NetworkError = networkError != 0
		if status.Valid {
			value := int(status.Int64)
			record.Status = &value
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}

	return records, nil
}

func (s *Store) CountRequestLog(ctx context.Context, q RequestLogQuery) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM request_log
		%s
	`, where)), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count request log: %w", err)
	}
	return count, nil
}

func (s *Store) ResetRequestLog(ctx context.Context, q RequestLogQuery) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, s.rebind(fmt.Sprintf(`
		DELETE FROM request_log
		%s
	`, where)), args...)
	if err != nil {
		return 0, fmt.Errorf("reset request log: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset request log: %w", err)
	}
	return affected, nil
}

// RequestLogSummary aggregates the attempts matched by q.
func (s *Store) RequestLogSummary(ctx context.Context, q RequestLogQuery) (*core.RequestSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 200 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 429 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN network_error = 0 AND status <> 200 AND status <> 429 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(network_error), 0),
			COALESCE(SUM(bytes), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(MAX(duration_ms), 0),
			MIN(start_ms),
			MAX(end_ms)
		FROM request_log
		%s
	`, where)), args...)

	var (
		summary core.RequestSummary
		first   sql.NullInt64
		last    sql.NullInt64
	)
	if err := row.Scan(
		&summary.Attempts,
		&summary.OK,
		&summary.RateLimited,
		&summary.HTTPErrors,
		&summary.NetworkErrors,
		&summary.Bytes,
		&summary.AvgDurationMS,
		&summary.MaxDurationMS,
		&first,
		&last,
	); err != nil {
		return nil, fmt.Errorf("summarize request log: %w", err)
	}
	if first.Valid {
		summary.FirstStart = time.UnixMilli(first.Int64).UTC()
	}
	if last.Valid {
		summary.LastEnd = time.UnixMilli(last.Int64).UTC()
	}
	return &summary, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
