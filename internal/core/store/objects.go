package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tabledog/tdog-cli-sub000/internal/core"
	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// UpsertObjects writes one page of objects, replacing earlier copies of the
// same ids. It returns the number of objects written.
func (s *Store) UpsertObjects(ctx context.Context, runID, accountID, objectType string, objects []stripe.Object) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if objectType == "" {
		return 0, errors.New("object type is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(objects) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", objectType, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO objects (account_id, object_type, id, created, data, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`+s.dialect.Upsert(
		[]string{"account_id", "object_type", "id"},
		[]string{"created", "data", "run_id", "updated_at"},
	)))
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", objectType, err)
	}
	defer stmt.Close() // nolint:errcheck // best-effort cleanup

	now := time.Now().UTC().UnixMilli()
	var written int64
	for _, obj := range objects {
		if _, err := stmt.ExecContext(ctx, accountID, objectType, obj.ID, obj.Created, string(obj.Data), runID, now); err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", objectType, obj.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", objectType, err)
	}
	return written, nil
}

// GetObject returns the stored JSON document of one object.
func (s *Store) GetObject(ctx context.Context, accountID, objectType, id string) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var data string
	err := s.DB.QueryRowContext(ctx, s.rebind(`
		SELECT data FROM objects WHERE account_id = ? AND object_type = ? AND id = ?
	`), accountID, objectType, id).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", objectType, id, err)
	}
	return []byte(data), nil
}

// CountObjects counts stored objects per type for an account. An empty
// accountID counts across accounts.
func (s *Store) CountObjects(ctx context.Context, accountID string) ([]core.ObjectCount, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where := ""
	var args []any
	if accountID != "" {
		where = "WHERE account_id = ?"
		args = append(args, accountID)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT object_type, COUNT(*)
		FROM objects
		%s
		GROUP BY object_type
		ORDER BY object_type
	`, where)), args...)
	if err != nil {
		return nil, fmt.Errorf("count objects: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	counts := []core.ObjectCount{}
	for rows.Next() {
		var count core.ObjectCount
		if err := rows.Scan(&count.ObjectType, &count.Count); err != nil {
			return nil, fmt.Errorf("scan object counts: %w", err)
		}
		counts = append(counts, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count objects: %w", err)
	}
	return counts, nil
}
