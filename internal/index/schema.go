// Package index mirrors stored mind maps into SQLite for listing and
// node-text search, with optional FTS5.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS maps (
	case_id    TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL DEFAULT '',
	node_count INTEGER NOT NULL DEFAULT 0,
	link_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS map_nodes (
	case_id TEXT NOT NULL REFERENCES maps(case_id) ON DELETE CASCADE,
	node_id TEXT NOT NULL,
	text    TEXT NOT NULL DEFAULT '',
	type    TEXT NOT NULL DEFAULT 'cause',
	year    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (case_id, node_id)
);

CREATE TABLE IF NOT EXISTS map_links (
	case_id TEXT NOT NULL REFERENCES maps(case_id) ON DELETE CASCADE,
	link_id TEXT NOT NULL,
	source  TEXT NOT NULL,
	target  TEXT NOT NULL,
	PRIMARY KEY (case_id, link_id)
);

CREATE INDEX IF NOT EXISTS idx_map_nodes_year ON map_nodes(year);
CREATE INDEX IF NOT EXISTS idx_map_links_source ON map_links(case_id, source);
CREATE INDEX IF NOT EXISTS idx_map_links_target ON map_links(case_id, target);
`

// DB wraps a sql.DB with index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database and applies the schema.
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

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
