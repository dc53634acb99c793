package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/outline/internal/models"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind string, id models.PageID) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+id.String())
	r.mu.Unlock()
}

func (r *recorder) has(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == s {
			return true
		}
	}
	return false
}

func startWatch(t *testing.T, ix *Indexer, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ix.Watch(ctx, 50*time.Millisecond, cb)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewPageIndexed(t *testing.T) {
	ix, store, db := testIndexer(t)
	rec := &recorder{}
	startWatch(t, ix, rec.record)

	_ = os.WriteFile(filepath.Join(store.Dir(models.UserPage), "new.md"), []byte("- [ ] fresh\n"), 0o644)

	id := models.UserPageID("new")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(id)
		return cs != ""
	}, "new page not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return ix.Publisher().Index().Len() == 1
	}, "todo not published")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(EventCreated+":"+id.String()) || rec.has(EventUpdated+":"+id.String())
	}, "expected a callback for the new page")
}

func TestWatcher_JournalPageIndexed(t *testing.T) {
	ix, store, _ := testIndexer(t)
	startWatch(t, ix, nil)

	_ = os.WriteFile(filepath.Join(store.Dir(models.JournalPage), "2024_03_01.md"), []byte("- [x] shipped\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		entries := ix.Publisher().Index().Entries()
		return len(entries) == 1 && entries[0].Source.PageID == models.JournalPageID("2024_03_01")
	}, "journal page not indexed by watcher")
}

func TestWatcher_NonPageFilesIgnored(t *testing.T) {
	ix, store, db := testIndexer(t)
	rec := &recorder{}
	startWatch(t, ix, rec.record)

	_ = os.WriteFile(filepath.Join(store.Dir(models.UserPage), "notes.txt"), []byte("- [ ] nope\n"), 0o644)
	_ = os.WriteFile(filepath.Join(store.Dir(models.UserPage), "real.md"), []byte("- [ ] yes\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(models.UserPageID("real"))
		return cs != ""
	}, "page not indexed")
	if ix.Publisher().Index().Len() != 1 {
		t.Errorf("index len = %d, want 1", ix.Publisher().Index().Len())
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	ix, store, db := testIndexer(t)
	id := models.UserPageID("del")
	_ = store.Write(id, []byte("- [ ] delete me\n"))
	if err := ix.Sync(); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.GetChecksum(id); cs == "" {
		t.Fatal("precondition: page should be indexed")
	}

	rec := &recorder{}
	startWatch(t, ix, rec.record)
	_ = os.Remove(filepath.Join(store.Dir(models.UserPage), "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(id)
		return cs == "" && ix.Publisher().Index().Len() == 0
	}, "deleted page still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(EventDeleted + ":" + id.String())
	}, "expected deleted callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	ix, store, db := testIndexer(t)
	_ = store.Write(models.UserPageID("old"), []byte("- [ ] rename\n"))
	_ = ix.Sync()

	startWatch(t, ix, nil)
	dir := store.Dir(models.UserPage)
	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum(models.UserPageID("old"))
		newCS, _ := db.GetChecksum(models.UserPageID("renamed"))
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old page should be removed and new page indexed")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		entries := ix.Publisher().Index().Entries()
		return len(entries) == 1 && entries[0].Source.PageName == "renamed"
	}, "published index should carry the renamed page")
}

func (r *recorder) hasPage(id models.PageID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if strings.HasSuffix(e, ":"+id.String()) {
			return true
		}
	}
	return false
}

func TestWatcher_IndexerChangesEmitNoEvent(t *testing.T) {
	ix, store, _ := testIndexer(t)
	id := models.UserPageID("Proj")
	_ = store.Write(id, []byte("- [ ] seed\n"))
	if err := ix.Sync(); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	startWatch(t, ix, rec.record)

	if _, err := ix.WritePage(id, []byte("- [x] seed\n")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if _, err := ix.DeletePage(id); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	// Events are delivered in order, so once the marker is seen every
	// event for Proj has been handled.
	marker := models.UserPageID("marker")
	_ = os.WriteFile(filepath.Join(store.Dir(models.UserPage), "marker.md"), []byte("- [ ] m\n"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.hasPage(marker)
	}, "marker page not seen by watcher")

	if rec.hasPage(id) {
		rec.mu.Lock()
		t.Errorf("events for changes already indexed: %v", rec.events)
		rec.mu.Unlock()
	}
}
