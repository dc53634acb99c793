package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/outline/internal/checksum"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/parser"
	"github.com/starford/outline/internal/storage"
)

var namespaces = []models.PageNamespace{models.UserPage, models.JournalPage}

// PageStore is the storage surface the indexer needs: page I/O plus the
// mapping between watched paths and page ids.
type PageStore interface {
	storage.Provider
	Root() string
	Dir(ns models.PageNamespace) string
	PageIDForPath(rel string) (models.PageID, bool)
}

// Indexer keeps the published index and the SQLite mirror in step with the
// page store. Writes are serialised so the mirror commits in the same order
// as the publisher swaps.
type Indexer struct {
	mu     sync.Mutex
	db     TodoStore
	pub    *Publisher
	store  PageStore
	logger *slog.Logger
}

// NewIndexer wires an indexer.
func NewIndexer(db TodoStore, pub *Publisher, store PageStore, logger *slog.Logger) *Indexer {
	return &Indexer{db: db, pub: pub, store: store, logger: logger}
}

// Publisher returns the publish point the indexer writes to.
func (ix *Indexer) Publisher() *Publisher {
	return ix.pub
}

// LoadSnapshot reads and parses every page of both namespaces. Pages that
// fail to parse are skipped with a warning. It also returns the metadata of
// every loaded page.
func LoadSnapshot(store storage.Provider, logger *slog.Logger) (*models.Snapshot, map[models.PageID]storage.PageMeta, error) {
	snap := models.NewSnapshot()
	metas := make(map[models.PageID]storage.PageMeta)
	for _, ns := range namespaces {
		pages, err := store.Load(ns)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range pages {
			res, err := parser.Parse(p.Content)
			if err != nil {
				logger.Warn("sync: parse failed", slog.String("page", p.ID.String()), slog.String("error", err.Error()))
				continue
			}
			snap.Namespace(ns)[p.ID.Name] = res.Page
			metas[p.ID] = p.PageMeta
		}
	}
	return snap, metas, nil
}

// Sync rebuilds the index from the whole page store and reconciles the mirror:
//   - changed pages get their checksum updated
//   - pages removed from disk are deleted
//   - the todo rows are rewritten from the fresh index
func (ix *Indexer) Sync() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap, metas, err := LoadSnapshot(ix.store, ix.logger)
	if err != nil {
		return fmt.Errorf("index: load snapshot: %w", err)
	}
	built := ix.pub.Rebuild(snap)

	checksums, err := ix.db.AllChecksums()
	if err != nil {
		return err
	}
	for id, m := range metas {
		if checksums[id] == m.Checksum {
			continue
		}
		if err := ix.db.UpsertPage(PageRow{ID: id, Checksum: m.Checksum, UpdatedAt: m.UpdatedAt}); err != nil {
			ix.logger.Warn("sync: upsert page failed", slog.String("page", id.String()), slog.String("error", err.Error()))
		}
	}
	for id := range checksums {
		if _, ok := metas[id]; ok {
			continue
		}
		if err := ix.db.DeletePage(id); err != nil {
			ix.logger.Warn("sync: delete failed", slog.String("page", id.String()), slog.String("error", err.Error()))
		} else {
			ix.logger.Debug("sync: removed stale", slog.String("page", id.String()))
		}
	}

	if err := ix.db.ReplaceAllTodos(built.Entries()); err != nil {
		return err
	}
	ix.logger.Info("sync: index rebuilt",
		slog.Int("pages", len(snap.Pages)),
		slog.Int("journals", len(snap.Journals)),
		slog.Int("todos", built.Len()))
	return nil
}

// ReadAndIndex reads id from the store and indexes it.
func (ix *Indexer) ReadAndIndex(id models.PageID) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	data, err := ix.store.Read(id)
	if err != nil {
		return false, err
	}
	return ix.indexPage(id, data)
}

// WritePage stores data as the content of id and indexes it in one step, so
// the watcher event for the write finds the page already indexed. It reports
// false when the stored checksum already matches and nothing changed.
func (ix *Indexer) WritePage(id models.PageID, data []byte) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.store.Write(id, data); err != nil {
		return false, err
	}
	return ix.indexPage(id, data)
}

// RemovePage drops id from the index and the mirror. It reports false when
// neither held the page, so a second removal of the same page is a no-op.
func (ix *Indexer) RemovePage(id models.PageID) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removePage(id)
}

// DeletePage deletes id from the store and removes it from the index in one
// step. A missing page yields an error wrapping os.ErrNotExist.
func (ix *Indexer) DeletePage(id models.PageID) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.store.Delete(id); err != nil {
		return false, err
	}
	return ix.removePage(id)
}

// indexPage parses data as the new content of id and applies it unless the
// mirror already holds the same checksum. ix.mu must be held.
func (ix *Indexer) indexPage(id models.PageID, data []byte) (bool, error) {
	cs := checksum.Sum(data)
	if prev, err := ix.db.GetChecksum(id); err == nil && prev == cs {
		if _, known := ix.pub.Snapshot().Namespace(id.Namespace)[id.Name]; known {
			return false, nil
		}
	}
	res, err := parser.Parse(data)
	if err != nil {
		return false, err
	}
	built := ix.pub.ApplyPage(id, res.Page)
	if err := ix.db.UpsertPage(PageRow{ID: id, Checksum: cs, UpdatedAt: time.Now()}); err != nil {
		return true, err
	}
	return true, ix.db.ReplaceTodos(id.Name, built.PageEntries(id.Name))
}

func (ix *Indexer) removePage(id models.PageID) (bool, error) {
	_, published := ix.pub.Snapshot().Namespace(id.Namespace)[id.Name]
	cs, err := ix.db.GetChecksum(id)
	if err != nil {
		return false, err
	}
	if !published && cs == "" {
		return false, nil
	}
	built := ix.pub.RemovePage(id)
	if err := ix.db.DeletePage(id); err != nil {
		return true, err
	}
	return true, ix.db.ReplaceTodos(id.Name, built.PageEntries(id.Name))
}

// reconcile removes pages that vanished from disk and indexes pages whose
// checksum differs from the mirror.
func (ix *Indexer) reconcile(cb EventCallback) {
	checksums, err := ix.db.AllChecksums()
	if err != nil {
		ix.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[models.PageID]string)
	for _, ns := range namespaces {
		list, err := ix.store.List(ns)
		if err != nil {
			ix.logger.Warn("reconcile: list failed", slog.String("namespace", ns.String()), slog.String("error", err.Error()))
			return
		}
		for _, m := range list {
			disk[m.ID] = m.Checksum
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		removed, err := ix.RemovePage(id)
		if err != nil {
			ix.logger.Warn("reconcile: remove failed", slog.String("page", id.String()), slog.String("error", err.Error()))
			continue
		}
		if removed {
			ix.logger.Debug("reconcile: removed stale", slog.String("page", id.String()))
			if cb != nil {
				cb(EventDeleted, id)
			}
		}
	}

	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		changed, err := ix.ReadAndIndex(id)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				ix.logger.Warn("reconcile: index failed", slog.String("page", id.String()), slog.String("error", err.Error()))
			}
			continue
		}
		if changed {
			ix.logger.Debug("reconcile: indexed", slog.String("page", id.String()))
			if cb != nil {
				cb(EventCreated, id)
			}
		}
	}
}
