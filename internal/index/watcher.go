package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/outline/internal/models"
)

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, id models.PageID)

// DefaultDebounce delays reconciliation after renames.
const DefaultDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the pages and journals directories and
// applies page changes to the index until ctx is cancelled. It calls cb (if
// non-nil) after each index mutation. Changes the index already holds, such
// as a save or delete made through the indexer, produce no callback.
//
// Create and write events reindex the page (remove its entries, rescan,
// append). Remove events drop it. Rename events fire on the old path only, so
// the old page is dropped and a debounced reconciliation pass picks up the
// new name.
func (ix *Indexer) Watch(ctx context.Context, debounce time.Duration, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, ns := range namespaces {
		if err := w.Add(ix.store.Dir(ns)); err != nil {
			return err
		}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ix.logger.Info("watcher: started", slog.String("root", ix.store.Root()))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(debounce)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ix.reconcile(cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(ix.store.Root(), ev.Name)
			if relErr != nil {
				continue
			}
			id, isPage := ix.store.PageIDForPath(rel)
			if !isPage {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed, idxErr := ix.ReadAndIndex(id)
				if idxErr != nil {
					if !errors.Is(idxErr, os.ErrNotExist) {
						ix.logger.Warn("watcher: index failed", slog.String("page", id.String()), slog.String("error", idxErr.Error()))
					}
					continue
				}
				if !changed {
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				ix.logger.Debug("watcher: indexed", slog.String("page", id.String()), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				removed, delErr := ix.RemovePage(id)
				if delErr != nil {
					ix.logger.Warn("watcher: delete failed", slog.String("page", id.String()), slog.String("error", delErr.Error()))
					continue
				}
				if !removed {
					continue
				}
				ix.logger.Debug("watcher: deleted", slog.String("page", id.String()))
				if cb != nil {
					cb(EventDeleted, id)
				}

			case ev.Op&fsnotify.Rename != 0:
				removed, delErr := ix.RemovePage(id)
				if delErr != nil {
					ix.logger.Warn("watcher: rename delete failed", slog.String("page", id.String()), slog.String("error", delErr.Error()))
				} else if removed {
					ix.logger.Debug("watcher: rename old deleted", slog.String("page", id.String()))
					if cb != nil {
						cb(EventDeleted, id)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
