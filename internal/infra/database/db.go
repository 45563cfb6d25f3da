package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"time"

	"subscription_notifier/internal/infra/config"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	// timestampLayout is fixed-width so stored values sort lexically in SQLite.
	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// DB is a *sql.DB plus the driver it was opened with. Queries are written
// once with $n placeholders and rebound for SQLite.
type DB struct {
	*sql.DB
	Driver string
}

// Open creates and returns a new database connection for the driver.
// It also pings the database to ensure connectivity.
func Open(ctx context.Context, driver, dataSourceName string) (*DB, error) {
	switch driver {
	case config.DriverPostgres:
		return NewPostgresConnection(ctx, dataSourceName)
	case config.DriverSQLite:
		return NewSQLiteConnection(ctx, dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
func NewPostgresConnection(ctx context.Context, dataSourceName string) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.PingContext(ctx); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Driver: config.DriverPostgres}, nil
}

// NewSQLiteConnection opens an SQLite database, e.g. "notifier.db" or ":memory:".
func NewSQLiteConnection(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared by every caller.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &DB{DB: db, Driver: config.DriverSQLite}, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/" + db.Driver + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %q: %w", db.Driver, err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *DB and *Tx, so repositories can run inside
// or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Rebind(query string) string
}

// Rebind converts $n placeholders to ?n for SQLite.
func (db *DB) Rebind(query string) string {
	return rebind(db.Driver, query)
}

func rebind(driver, query string) string {
	if driver != config.DriverSQLite {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestamp scans TIMESTAMPTZ (time.Time from lib/pq) and SQLite text columns.
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (ts timestamp) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*ts.t = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
