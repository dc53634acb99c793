// Package index maintains the todo index: the published in-memory view and
// its SQLite mirror, kept current by a full sync and a graph watcher.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	page_key   TEXT PRIMARY KEY,
	namespace  TEXT NOT NULL,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS todos (
	id           TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	page_key     TEXT NOT NULL,
	page_name    TEXT NOT NULL,
	namespace    TEXT NOT NULL,
	block_number INTEGER NOT NULL,
	state        TEXT NOT NULL,
	text         TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS todo_tags (
	todo_id TEXT NOT NULL,
	tag     TEXT NOT NULL,
	UNIQUE(todo_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_todos_page_name ON todos(page_name);
CREATE INDEX IF NOT EXISTS idx_todos_state ON todos(state);
CREATE INDEX IF NOT EXISTS idx_todo_tags_tag ON todo_tags(tag);
`

// DB wraps a sql.DB with todo-mirror operations.
type DB struct {
	conn *sql.DB
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
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
