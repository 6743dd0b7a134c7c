//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/casemap/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			case_id UNINDEXED,
			node_id UNINDEXED,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, caseID string, nodes []models.Node) error {
	ftsDelete(tx, caseID)
	stmt, err := tx.Prepare(`INSERT INTO nodes_fts (case_id, node_id, text) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare fts insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range nodes {
		if _, err := stmt.Exec(caseID, n.ID, n.Text); err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, caseID string) {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE case_id = ?`, caseID)
}

// Search runs an FTS5 match over node text and returns hits with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.case_id,
		       f.node_id,
		       f.text,
		       COALESCE(n.year, 0),
		       snippet(nodes_fts, 2, '<b>', '</b>', '...', 32)
		FROM nodes_fts f
		LEFT JOIN map_nodes n ON n.case_id = f.case_id AND n.node_id = f.node_id
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
