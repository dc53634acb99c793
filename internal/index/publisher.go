package index

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/outline/internal/metrics"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/todo"
)

// published is the snapshot/index pair swapped in one atomic store.
type published struct {
	snap  *models.Snapshot
	index *todo.Index
}

// Publisher is the single-writer publish point of the todo index. Writers
// are serialised; readers load the current value without locking and never
// observe a partially applied update.
type Publisher struct {
	mu               sync.Mutex
	cur              atomic.Pointer[published]
	journalNamespace models.PageNamespace
	metrics          *metrics.Metrics
}

// NewPublisher returns a publisher holding an empty index. journalNamespace
// is recorded in the source reference of journal entries.
func NewPublisher(journalNamespace models.PageNamespace, m *metrics.Metrics) *Publisher {
	p := &Publisher{journalNamespace: journalNamespace, metrics: m}
	p.cur.Store(&published{snap: models.NewSnapshot(), index: todo.Empty()})
	return p
}

// Index returns the current todo index.
func (p *Publisher) Index() *todo.Index {
	return p.cur.Load().index
}

// Snapshot returns the page snapshot the current index was built from.
// Callers must not modify it.
func (p *Publisher) Snapshot() *models.Snapshot {
	return p.cur.Load().snap
}

// Rebuild replaces the index with a full build of snap.
func (p *Publisher) Rebuild(snap *models.Snapshot) *todo.Index {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap == nil {
		snap = models.NewSnapshot()
	}
	start := time.Now()
	ix := todo.BuildFullIndex(snap, todo.WithJournalSourceNamespace(p.journalNamespace))
	p.metrics.ObserveRebuild(time.Since(start))
	p.store(snap, ix)
	return ix
}

// ApplyPage records a new version of one page and updates the index with
// ReplacePage. ReplacePage drops entries by name in both namespaces, so a
// same-named page in the other namespace is scanned again afterwards.
func (p *Publisher) ApplyPage(id models.PageID, page models.Page) *todo.Index {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.cur.Load()
	snap := cloneSnapshot(cur.snap)
	snap.Namespace(id.Namespace)[id.Name] = page
	ix := cur.index.ReplacePage(id, p.sourceNamespace(id), page)
	ix = p.appendNamesake(ix, snap, id)
	p.metrics.PageUpdated("replace")
	p.store(snap, ix)
	return ix
}

// RemovePage drops a page from the snapshot and its entries from the index.
func (p *Publisher) RemovePage(id models.PageID) *todo.Index {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.cur.Load()
	snap := cloneSnapshot(cur.snap)
	delete(snap.Namespace(id.Namespace), id.Name)
	ix := p.appendNamesake(cur.index.WithoutPage(id.Name), snap, id)
	p.metrics.PageUpdated("remove")
	p.store(snap, ix)
	return ix
}

// sourceNamespace is the namespace recorded on entries of id.
func (p *Publisher) sourceNamespace(id models.PageID) models.PageNamespace {
	if id.IsUserPage() {
		return models.UserPage
	}
	return p.journalNamespace
}

// appendNamesake re-adds the entries of the page sharing id's name in the
// other namespace, if the snapshot holds one.
func (p *Publisher) appendNamesake(ix *todo.Index, snap *models.Snapshot, id models.PageID) *todo.Index {
	other := models.JournalPageID(id.Name)
	if !id.IsUserPage() {
		other = models.UserPageID(id.Name)
	}
	page, ok := snap.Namespace(other.Namespace)[other.Name]
	if !ok {
		return ix
	}
	return ix.Append(todo.BuildPageContribution(other, p.sourceNamespace(other), other.Name, page)...)
}

func (p *Publisher) store(snap *models.Snapshot, ix *todo.Index) {
	p.cur.Store(&published{snap: snap, index: ix})
	p.metrics.SetEntries(ix.Counts())
}

func cloneSnapshot(s *models.Snapshot) *models.Snapshot {
	out := &models.Snapshot{
		Pages:    make(map[models.PageName]models.Page, len(s.Pages)),
		Journals: make(map[models.PageName]models.Page, len(s.Journals)),
	}
	for k, v := range s.Pages {
		out.Pages[k] = v
	}
	for k, v := range s.Journals {
		out.Journals[k] = v
	}
	return out
}
