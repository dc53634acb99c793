package todo

import (
	"sort"

	"github.com/starford/outline/internal/models"
)

// Index is an immutable, ordered list of todo entries. Every operation
// returns a new Index; entries handed out are copies.
type Index struct {
	entries []models.TodoIndexEntry
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{}
}

// New builds an index from entries, copying them.
func New(entries []models.TodoIndexEntry) *Index {
	return &Index{entries: cloneEntries(entries)}
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Entries returns a copy of the entries in index order.
func (ix *Index) Entries() []models.TodoIndexEntry {
	if ix == nil {
		return nil
	}
	return cloneEntries(ix.entries)
}

// WithoutPage drops every entry whose source page name equals name,
// regardless of namespace, keeping the order of the rest.
func (ix *Index) WithoutPage(name models.PageName) *Index {
	if ix == nil {
		return Empty()
	}
	kept := make([]models.TodoIndexEntry, 0, len(ix.entries))
	for _, e := range ix.entries {
		if e.Source.PageName != name {
			kept = append(kept, e)
		}
	}
	return &Index{entries: kept}
}

// Append returns a new index with entries added at the end.
func (ix *Index) Append(entries ...models.TodoIndexEntry) *Index {
	out := make([]models.TodoIndexEntry, 0, ix.Len()+len(entries))
	if ix != nil {
		out = append(out, ix.entries...)
	}
	out = append(out, cloneEntries(entries)...)
	return &Index{entries: out}
}

// ReplacePage removes the entries for id's name and appends a fresh scan of
// page. This is the incremental update path for one edited page.
func (ix *Index) ReplacePage(id models.PageID, ns models.PageNamespace, page models.Page) *Index {
	return ix.WithoutPage(id.Name).Append(BuildPageContribution(id, ns, id.Name, page)...)
}

// Query filters entries. Zero-valued fields match everything.
type Query struct {
	Tag       models.PageName
	State     *models.TodoState
	Namespace *models.PageNamespace
}

// Filter returns the entries matching q in index order.
func (ix *Index) Filter(q Query) []models.TodoIndexEntry {
	if ix == nil {
		return nil
	}
	var out []models.TodoIndexEntry
	for _, e := range ix.entries {
		if q.Tag != "" && !e.HasTag(q.Tag) {
			continue
		}
		if q.State != nil && e.State != *q.State {
			continue
		}
		if q.Namespace != nil && e.Source.Namespace != *q.Namespace {
			continue
		}
		out = append(out, e.Clone())
	}
	return out
}

// TagSummary counts the open and done entries carrying a tag.
type TagSummary struct {
	Tag  models.PageName `json:"tag"`
	Open int             `json:"open"`
	Done int             `json:"done"`
}

// Tags summarises every tag in the index, sorted by tag.
func (ix *Index) Tags() []TagSummary {
	if ix == nil {
		return nil
	}
	byTag := make(map[models.PageName]*TagSummary)
	for _, e := range ix.entries {
		for _, tag := range e.Tags {
			s, ok := byTag[tag]
			if !ok {
				s = &TagSummary{Tag: tag}
				byTag[tag] = s
			}
			if e.State == models.TodoOpen {
				s.Open++
			} else {
				s.Done++
			}
		}
	}
	out := make([]TagSummary, 0, len(byTag))
	for _, s := range byTag {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Counts returns the number of open and done entries.
func (ix *Index) Counts() (open, done int) {
	if ix == nil {
		return 0, 0
	}
	for _, e := range ix.entries {
		if e.State == models.TodoOpen {
			open++
		} else {
			done++
		}
	}
	return open, done
}

func cloneEntries(in []models.TodoIndexEntry) []models.TodoIndexEntry {
	if in == nil {
		return nil
	}
	out := make([]models.TodoIndexEntry, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// PageEntries returns copies of the entries whose source page name is name,
// in index order.
func (ix *Index) PageEntries(name models.PageName) []models.TodoIndexEntry {
	if ix == nil {
		return nil
	}
	var out []models.TodoIndexEntry
	for _, e := range ix.entries {
		if e.Source.PageName == name {
			out = append(out, e.Clone())
		}
	}
	return out
}
