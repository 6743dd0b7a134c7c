package index

import "github.com/starford/casemap/internal/models"

// Upserter stores decoded map documents.
type Upserter interface {
	UpsertMap(row MapRow, m models.MindMap) error
}

// MapIndex is what the map service needs from the index.
type MapIndex interface {
	Upserter
	DeleteMap(caseID string) error
	GetChecksum(caseID string) (string, error)
	GetMap(caseID string) (*MapRow, error)
	ListMaps(limit, offset int) ([]MapRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ MapIndex = (*DB)(nil)
