// Package testutil provides shared test helpers for setting up graphs, databases and indexers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/outline/internal/index"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "outline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestGraph creates a temporary graph directory with the default layout.
func TestGraph(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir(), storage.DefaultLayout)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Env bundles a graph, its mirror and an indexer over both.
type Env struct {
	Store   *storage.FS
	DB      *index.DB
	Indexer *index.Indexer
}

// NewEnv seeds a temporary graph with pages, syncs it and returns the wired
// pieces.
func NewEnv(t *testing.T, pages map[models.PageID]string) *Env {
	t.Helper()
	store := TestGraph(t)
	db := TestDB(t)
	for id, content := range pages {
		if err := store.Write(id, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ix := index.NewIndexer(db, index.NewPublisher(models.JournalPage, nil), store, logger)
	if err := ix.Sync(); err != nil {
		t.Fatal(err)
	}
	return &Env{Store: store, DB: db, Indexer: ix}
}
