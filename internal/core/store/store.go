package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
)

const (
	driverLibsql   = "libsql"
	driverMySQL    = "mysql"
	driverPostgres = "postgres"

	// sqlDriverPgx is the database/sql name registered by pgx/v5/stdlib.
	sqlDriverPgx = "pgx"

	localBusyTimeoutMS = 5000
)

// Store wraps the database connection for tdog.
type Store struct {
	DB      *sql.DB
	driver  string
	dialect Dialect
}

// Open initializes a store connection using the provided configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}

	if ctx == nil {
		ctx = context.Background()
	}

	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch driver {
	case driverLibsql:
		db, err = openLibsql(ctx, cfg)
	case driverMySQL:
		db, err = openMySQL(cfg)
	case driverPostgres:
		db, err = openPostgres(cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	return &Store{DB: db, driver: driver, dialect: dialect}, nil
}

func openLibsql(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	dsn, err := buildLibsqlDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}

	if strings.TrimSpace(cfg.URL) == "" {
		if err := configureLocal(ctx, db, dsn); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// configureLocal serialises access to embedded databases. An in-memory
// database exists per connection, so the pool must never grow past one.
func configureLocal(ctx context.Context, db *sql.DB, dsn string) error {
	db.SetMaxOpenConns(1)
	if dsn == ":memory:" {
		return nil
	}

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("configure libsql journal mode: %w", err)
	}
	var timeout int
	if err := db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", localBusyTimeoutMS)).Scan(&timeout); err != nil {
		return fmt.Errorf("configure libsql busy timeout: %w", err)
	}
	return nil
}

func openMySQL(cfg config.StoreConfig) (*sql.DB, error) {
	parsed, err := mysql.ParseDSN(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	if parsed.Params == nil {
		parsed.Params = map[string]string{}
	}
	if _, ok := parsed.Params["charset"]; !ok {
		parsed.Params["charset"] = "utf8mb4"
	}

	db, err := sql.Open(driverMySQL, parsed.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql store: %w", err)
	}
	return db, nil
}

func openPostgres(cfg config.StoreConfig) (*sql.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("store dsn is required for postgres")
	}
	db, err := sql.Open(sqlDriverPgx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	return db, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() Dialect {
	if s == nil {
		return Dialect{}
	}
	return s.dialect
}

func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

func (s *Store) ready() error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return nil
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.URL); dsn != "" {
		return addAuthToken(dsn, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
