package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/casemap/internal/checksum"
	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/storage"
)

// CaseIDFromPath returns the case id of a map document path such as
// "maps/berlin-wall.json". ok is false for anything else.
func CaseIDFromPath(p string) (string, bool) {
	if path.Dir(p) != storage.MapsDir || !strings.HasSuffix(p, storage.MapExt) {
		return "", false
	}
	id := strings.TrimSuffix(path.Base(p), storage.MapExt)
	if id == "" || strings.HasPrefix(id, ".") {
		return "", false
	}
	return id, true
}

// Sync brings the index up to date with the map documents in store:
//   - new or changed maps are decoded and upserted
//   - maps removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List(storage.MapsDir, storage.MapExt)
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id, ok := CaseIDFromPath(m.Path)
		if !ok {
			continue
		}
		disk[id] = struct{}{}
		if checksums[id] == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexDocument(db, id, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("case_id", id))
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := db.DeleteMap(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("case_id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("case_id", id))
		}
	}
	return nil
}

// IndexDocument decodes a stored map document and upserts it.
func IndexDocument(db Upserter, caseID string, data []byte, updatedAt time.Time) error {
	var m models.MindMap
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("index: decode %s: %w", caseID, err)
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return db.UpsertMap(MapRow{
		CaseID:    caseID,
		Checksum:  checksum.Sum(data),
		UpdatedAt: updatedAt,
	}, m)
}
