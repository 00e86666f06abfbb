// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It's a pure Go translation of SQLite: no CGo, no C compiler, and cross
// compilation just works. It registers itself with database/sql as the
// "sqlite" driver.
//
// SCHEMA MIGRATIONS:
// SQL files under migrations/ are embedded into the binary and applied by
// goose on every start. goose records applied versions in its own
// goose_db_version table, so re-running New against an existing file is a
// no-op.
//
// TIME STORAGE:
// Every timestamp column holds unix milliseconds (INTEGER). SQLite has no
// native time type, and comparing text timestamps breaks as soon as two
// values use different offsets. Integers compare correctly in range
// predicates like the event overlap test.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a sql.DB connection pool and implements every repository
// interface in the parent package.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at dbPath and applies migrations.
//
// dbPath examples:
//   - "data/studysync.db" → file-based database
//   - ":memory:"          → in-memory database, used by tests
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" gets its own empty database, so the
	// pool must never open a second one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{db.logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.conn, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose's printf-style output into slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "goose"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	// goose only calls Fatalf from its CLI helpers; the library paths used
	// here return errors instead.
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "goose"))
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

// toMillis converts a time to the stored representation.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis is the inverse of toMillis. The result is in the local zone.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// nullableMillis maps nil to SQL NULL.
func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
