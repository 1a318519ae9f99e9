// Package sqlite stores actions, members and settings in a single SQLite file.
//
// One youth group means one server and a few hundred rows a week. The mural
// only ever asks for "newest N actions", "member by email" and a handful of
// settings, so an embedded database is all it needs. Tests use ":memory:".
//
// The driver is modernc.org/sqlite, a pure Go build of SQLite, so the binary
// cross-compiles without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"

	"github.com/vibeteen/vibe-teen/internal/model"
)

// DB wraps a sql.DB connection pool. The per-table stores hang off it
// (db.Actions(), db.Members()) so their method names don't collide.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations. ":memory:" gives a
// throwaway database that is gone once Close returns.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives and dies with its connection. Pinning the
	// pool to one connection keeps every query on the same database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets the live feed keep reading while an action is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Writes from concurrent requests wait for the lock instead of failing
	// immediately with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates or upgrades the schema. Every statement is idempotent, so
// it runs on every start.
func (db *DB) migrate() error {
	// actions: append-only mural entries. created_at is fixed-width TEXT
	// (model.TimestampLayout) so ORDER BY created_at is chronological.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id               TEXT PRIMARY KEY,
			author_name      TEXT NOT NULL,
			beneficiary_name TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL CHECK (category IN ('prayed', 'cared', 'shared')),
			created_at       TEXT NOT NULL,
			author_color     TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating actions table: %w", err)
	}

	// members: email is the login key, stored lowercased.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS members (
			id           TEXT PRIMARY KEY,
			first_name   TEXT NOT NULL,
			last_name    TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL UNIQUE,
			avatar_color TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'Visitante',
			role         TEXT NOT NULL DEFAULT 'user',
			pin_hash     TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating members table: %w", err)
	}

	// author_id arrived after the first release; older rows keep it empty and
	// are matched by name. No foreign key: deleting a member keeps their acts
	// on the mural.
	if err := db.addColumnIfNotExists("actions", "author_id",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding author_id to actions: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_actions_author_id ON actions(author_id);
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}

	if err := db.widenActionTimestamps(); err != nil {
		return fmt.Errorf("normalizing action timestamps: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Migrations call it on every start, so it must be safe to repeat.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// widenActionTimestamps rewrites created_at values stored with trimmed
// fractional seconds into model.TimestampLayout. Already normalized rows have
// the layout's exact length and are skipped.
func (db *DB) widenActionTimestamps() error {
	width := len(model.TimestampLayout)
	rows, err := db.conn.Query(`SELECT id, created_at FROM actions WHERE length(created_at) != ?`, width)
	if err != nil {
		return err
	}
	fixed := map[string]string{}
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			rows.Close()
			return err
		}
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			continue // unparseable rows keep their value
		}
		fixed[id] = model.FormatTimestamp(t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, at := range fixed {
		if _, err := db.conn.Exec(`UPDATE actions SET created_at = ? WHERE id = ?`, at, id); err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}
	}
	return nil
}
