//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/casemap/internal/models"
)

func initFTS(_ *sql.DB) error {
	// Without FTS5 search falls back to LIKE over map_nodes.text.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ []models.Node) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches node text with LIKE (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT case_id, node_id, text, year, substr(text, 1, 200)
		FROM map_nodes
		WHERE text LIKE ?
		ORDER BY case_id, year DESC, node_id
		LIMIT ?
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
