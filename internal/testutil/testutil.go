// Package testutil provides shared test helpers for setting up data
// directories, indexes and sample maps.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/casemap/internal/index"
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/storage"
)

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "casemap-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary data directory with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteCase writes a case brief under root/cases.
func WriteCase(t *testing.T, root, caseID, brief string) {
	t.Helper()
	dir := filepath.Join(root, storage.CasesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, caseID+storage.CaseExt), []byte(brief), 0o644); err != nil {
		t.Fatal(err)
	}
}

// BerlinMap is a small map with an outcome, two causes and one link.
func BerlinMap() models.MindMap {
	return models.MindMap{
		Nodes: []models.Node{
			{ID: models.OutcomeID, Text: "Berlin Wall Tumbles", X: 310, Y: 50, Type: models.NodeOutcome, IsFixed: true},
			{ID: "cause-1", Text: "Hungarian Border Opening (1989)", X: 250, Y: 280, Type: models.NodeCause, Year: 1989},
			{ID: "cause-2", Text: "Gorbachev's Reforms (1985)", X: 250, Y: 680, Type: models.NodeCause, Year: 1985},
		},
		Links: []models.Link{{ID: "l-1", Source: "cause-1", Target: models.OutcomeID}},
	}
}

// BerlinBrief is a case brief matching BerlinMap.
const BerlinBrief = "---\nid: berlin-wall\ntitle: The Fall of the Berlin Wall\nheadline: Berlin Wall Tumbles\ndifficulty: Moderate\n---\n" +
	"# The Fall of the Berlin Wall\n\nExplain why the wall came down in November 1989.\n\n" +
	"- Hungarian Border Opening (1989)\n" +
	"- Gorbachev's Reforms (1985)\n" +
	"- Mass protests in Leipzig (1989)\n"
