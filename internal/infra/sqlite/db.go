// Package sqlite implements HomeSoil's Store port (component A) over a
// SQLite database. Every exported method opens no connection beyond the
// pool's own scoping — each call acquires and releases in one round trip,
// matching spec §5's "no operation holds a connection across a suspension
// point" rule.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required

	"github.com/sirupsen/logrus"
)

// timeLayout is the wire and storage format for all timestamps: spec §3's
// "YYYY-MM-DD HH:MM:SS", stored as TEXT so window queries are a plain
// string BETWEEN without a parse step.
const timeLayout = "2006-01-02 15:04:05"

// DB wraps a SQLite connection pool with WAL mode and migrations.
type DB struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open opens (creating if absent) the SQLite database named by dsn —
// normally the value of the DATABASE_URL environment variable — enables
// WAL mode, foreign keys and a busy timeout, and runs migrations.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite is single-writer; one connection avoids SQLITE_BUSY storms
	// under concurrent handlers and keeps behavior predictable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	d := &DB{db: db, log: logrus.WithField("component", "store")}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity, used by the Supervisor boot probe
// and the ambient /healthz endpoint.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations for the four tables in
// spec §6.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sensors (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT,
			sensor_type TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			port       INTEGER NOT NULL,
			online     BOOLEAN NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sensors_kind_ip ON sensors(sensor_type, ip_address)`,
		`CREATE TABLE IF NOT EXISTS sensor_reads (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor_id    INTEGER NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
			sensor_value TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_reads_sensor ON sensor_reads(sensor_id, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_reads_created ON sensor_reads(created_at)`,
		`CREATE TABLE IF NOT EXISTS actuators (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT,
			ip_address TEXT NOT NULL,
			port       INTEGER NOT NULL,
			state      BOOLEAN NOT NULL DEFAULT 0,
			online     BOOLEAN NOT NULL DEFAULT 0,
			pulse      BOOLEAN NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_actuators_ip_port_pulse ON actuators(ip_address, port, pulse)`,
		`CREATE TABLE IF NOT EXISTS scripts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL,
			code       TEXT NOT NULL,
			schedule   TEXT,
			status     INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nowText() string {
	return time.Now().UTC().Format(timeLayout)
}

func nullableText(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
