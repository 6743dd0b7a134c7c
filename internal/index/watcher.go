package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/casemap/internal/checksum"
	"github.com/starford/casemap/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind, caseID string)

// Watch follows the maps directory under root and keeps the index in step
// until ctx is cancelled. Saves land as atomic renames, so a Create may be
// an update; the kind reported to cb is decided by the previous index state.
// Unchanged content is not reported.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	mapsDir := filepath.Join(root, storage.MapsDir)
	if err := os.MkdirAll(mapsDir, 0o755); err != nil {
		return fmt.Errorf("index: watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("index: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(mapsDir); err != nil {
		return fmt.Errorf("index: watch %s: %w", mapsDir, err)
	}
	logger.Info("watcher: started", slog.String("dir", mapsDir))

	notify := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	var (
		reconcileTimer *time.Timer
		reconcileCh    <-chan time.Time
	)
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			id, ok := CaseIDFromPath(filepath.ToSlash(rel))
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, changed, err := reindex(db, store, id)
				if err != nil {
					logger.Warn("watcher: index failed", slog.String("case_id", id), slog.String("error", err.Error()))
					continue
				}
				if changed {
					logger.Debug("watcher: indexed", slog.String("case_id", id), slog.String("op", kind))
					notify(kind, id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old name only; the reconcile pass picks up
				// whatever the file became.
				prev, _ := db.GetChecksum(id)
				if err := db.DeleteMap(id); err != nil {
					logger.Warn("watcher: delete failed", slog.String("case_id", id), slog.String("error", err.Error()))
				} else if prev != "" {
					logger.Debug("watcher: deleted", slog.String("case_id", id))
					notify(EventDeleted, id)
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex re-reads one map document. changed is false when the stored
// checksum already matches.
func reindex(db *DB, store storage.Provider, caseID string) (kind string, changed bool, err error) {
	data, err := store.Read(storage.MapPath(caseID))
	if err != nil {
		return "", false, err
	}
	prev, err := db.GetChecksum(caseID)
	if err != nil {
		return "", false, err
	}
	if prev == checksum.Sum(data) {
		return "", false, nil
	}
	if err := IndexDocument(db, caseID, data, time.Now().UTC()); err != nil {
		return "", false, err
	}
	if prev == "" {
		return EventCreated, true, nil
	}
	return EventUpdated, true, nil
}

// reconcile removes index entries whose document is gone and indexes
// documents the index has not seen.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, notify EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List(storage.MapsDir, storage.MapExt)
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		if id, ok := CaseIDFromPath(m.Path); ok {
			disk[id] = m.Checksum
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := db.DeleteMap(id); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("case_id", id))
			notify(EventDeleted, id)
		}
	}
	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		kind, changed, err := reindex(db, store, id)
		if err == nil && changed {
			logger.Debug("reconcile: indexed", slog.String("case_id", id))
			notify(kind, id)
		}
	}
}
