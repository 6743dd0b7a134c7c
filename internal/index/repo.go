package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/casemap/internal/models"
)

// MapRow is a row in the maps table.
type MapRow struct {
	CaseID    string
	Checksum  string
	Outcome   string
	NodeCount int
	LinkCount int
	UpdatedAt time.Time
}

// SearchResult is one node matching a search.
type SearchResult struct {
	CaseID  string
	NodeID  string
	Text    string
	Year    int
	Snippet string
}

// UpsertMap replaces the indexed copy of a map within one transaction.
func (db *DB) UpsertMap(row MapRow, m models.MindMap) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if o := m.Outcome(); o != nil {
		row.Outcome = o.Text
	}
	_, err = tx.Exec(`
		INSERT INTO maps (case_id, checksum, outcome, node_count, link_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			checksum   = excluded.checksum,
			outcome    = excluded.outcome,
			node_count = excluded.node_count,
			link_count = excluded.link_count,
			updated_at = excluded.updated_at
	`, row.CaseID, row.Checksum, row.Outcome, len(m.Nodes), len(m.Links), row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert map: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM map_nodes WHERE case_id = ?`, row.CaseID)
	_, _ = tx.Exec(`DELETE FROM map_links WHERE case_id = ?`, row.CaseID)

	if len(m.Nodes) > 0 {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO map_nodes (case_id, node_id, text, type, year) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare node insert: %w", err)
		}
		defer stmt.Close()
		for _, n := range m.Nodes {
			if _, err := stmt.Exec(row.CaseID, n.ID, n.Text, string(n.Type), n.Year); err != nil {
				return fmt.Errorf("index: insert node: %w", err)
			}
		}
	}
	if len(m.Links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO map_links (case_id, link_id, source, target) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range m.Links {
			if _, err := stmt.Exec(row.CaseID, l.ID, l.Source, l.Target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	if err := ftsUpsert(tx, row.CaseID, m.Nodes); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteMap removes a map, its nodes and its links.
func (db *DB) DeleteMap(caseID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, caseID)
	_, _ = tx.Exec(`DELETE FROM map_links WHERE case_id = ?`, caseID)
	_, _ = tx.Exec(`DELETE FROM map_nodes WHERE case_id = ?`, caseID)
	if _, err := tx.Exec(`DELETE FROM maps WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("index: delete map: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum of a map, or "" if it is not indexed.
func (db *DB) GetChecksum(caseID string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM maps WHERE case_id = ?`, caseID).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetMap returns the summary row of a map, or nil if it is not indexed.
func (db *DB) GetMap(caseID string) (*MapRow, error) {
	var r MapRow
	err := db.conn.QueryRow(`
		SELECT case_id, checksum, outcome, node_count, link_count, updated_at
		FROM maps WHERE case_id = ?
	`, caseID).Scan(&r.CaseID, &r.Checksum, &r.Outcome, &r.NodeCount, &r.LinkCount, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get map: %w", err)
	}
	return &r, nil
}

// ListMaps returns one page of maps ordered by case id, and the total count.
func (db *DB) ListMaps(limit, offset int) ([]MapRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM maps`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count maps: %w", err)
	}
	rows, err := db.conn.Query(`
		SELECT case_id, checksum, outcome, node_count, link_count, updated_at
		FROM maps
		ORDER BY case_id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list maps: %w", err)
	}
	defer rows.Close()

	var out []MapRow
	for rows.Next() {
		var r MapRow
		if err := rows.Scan(&r.CaseID, &r.Checksum, &r.Outcome, &r.NodeCount, &r.LinkCount, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums maps every indexed case id to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT case_id, checksum FROM maps`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.CaseID, &r.NodeID, &r.Text, &r.Year, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
