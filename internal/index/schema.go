// Package index provides a SQLite-backed catalog of notes with optional FTS5 name search.
// The catalog is derived from the store tree and can be rebuilt at any time.
package index

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	category_id   TEXT NOT NULL,
	note_id       TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	category_name TEXT NOT NULL DEFAULT '',
	fingerprint   TEXT NOT NULL DEFAULT '',
	image_file    TEXT NOT NULL DEFAULT '',
	encrypted     INTEGER NOT NULL DEFAULT 0,
	mtime         INTEGER NOT NULL DEFAULT 0,
	stamp         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (category_id, note_id)
);

CREATE INDEX IF NOT EXISTS idx_notes_fingerprint ON notes(fingerprint);
`

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
	// syncMu serialises full reconciliations (service resyncs and the watcher).
	syncMu sync.Mutex
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
