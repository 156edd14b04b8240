// Package db provides the persistent event log for conductor.
//
// The default backend is a SQLite file under the state directory;
// PostgreSQL is supported for deployments that already run one. Only
// the event log lives here — entity state is JSON files owned by the
// store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect represents the database dialect.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps a database connection with its dialect.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Open opens an event-log database. For SQLite the DSN is a file path
// and the parent directory is created if needed.
func Open(dialect Dialect, dsn string) (*DB, error) {
	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	case DialectPostgres:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// modernc sqlite serializes writers; a single connection avoids
		// SQLITE_BUSY under concurrent flushes.
		conn.SetMaxOpenConns(1)
	}

	d := &DB{sql: conn, dialect: dialect}
	if err := d.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

// OpenInMemory opens an in-memory SQLite database, ideal for tests.
func OpenInMemory() (*DB, error) {
	return Open(DialectSQLite, ":memory:")
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Dialect returns the database dialect.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// placeholder returns the bind placeholder for the given 1-based index.
func (d *DB) placeholder(index int) string {
	if d.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS event_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	data TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_project ON event_log(project_id, id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS event_log (
	id BIGSERIAL PRIMARY KEY,
	project_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	data TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_project ON event_log(project_id, id);
`

// migrate creates the event_log table if it doesn't exist.
func (d *DB) migrate() error {
	schema := sqliteSchema
	if d.dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := d.sql.Exec(schema); err != nil {
		return fmt.Errorf("migrate event_log: %w", err)
	}
	return nil
}
