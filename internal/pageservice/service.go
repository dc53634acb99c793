// Package pageservice coordinates the page store, the published todo index
// and the SQLite mirror behind the API and MCP surfaces.
package pageservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/checksum"
	"github.com/starford/outline/internal/index"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/parser"
	"github.com/starford/outline/internal/storage"
	"github.com/starford/outline/internal/todo"
)

// PageDetail is the full representation of a page.
type PageDetail struct {
	ID          string         `json:"id"`
	Namespace   string         `json:"namespace"`
	Name        string         `json:"name"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []string       `json:"links"`
	Blocks      int            `json:"blocks"`
	Todos       []TodoItem     `json:"todos"`
}

// PageListItem is a lightweight item in a page listing.
type PageListItem struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoItem is one todo as returned to clients.
type TodoItem struct {
	ID          string   `json:"id"`
	Page        string   `json:"page"`
	PageName    string   `json:"page_name"`
	Namespace   string   `json:"namespace"`
	BlockNumber int      `json:"block_number"`
	State       string   `json:"state"`
	Text        string   `json:"text"`
	Tags        []string `json:"tags"`
}

// TodoQuery filters ListTodos.
type TodoQuery struct {
	Tag    string
	State  string
	Limit  int
	Offset int
}

// Service coordinates storage and index operations.
type Service struct {
	store   storage.Provider
	db      index.TodoStore
	indexer *index.Indexer
}

// NewService creates a new page service.
func NewService(store storage.Provider, db index.TodoStore, indexer *index.Indexer) *Service {
	return &Service{store: store, db: db, indexer: indexer}
}

// GetPage reads a page and attaches the todos the index holds for it.
func (s *Service) GetPage(_ context.Context, id models.PageID) (*PageDetail, error) {
	data, err := s.read(id)
	if err != nil {
		return nil, err
	}
	return s.buildPageDetail(id, data)
}

// SavePage writes content for id and indexes it. A non-empty ifMatch must
// equal the checksum of the stored page, and saving over a missing page with
// an ifMatch is a conflict. It reports whether the page was newly created.
func (s *Service) SavePage(_ context.Context, id models.PageID, content []byte, ifMatch string) (*PageDetail, bool, error) {
	if id.Name == "" {
		return nil, false, apperr.ErrInvalidPage
	}
	existing, err := s.read(id)
	created := errors.Is(err, apperr.ErrNotFound)
	switch {
	case created:
		if ifMatch != "" {
			return nil, false, apperr.ErrConflict
		}
	case err != nil:
		return nil, false, err
	case !checksum.Matches(existing, ifMatch):
		return nil, false, apperr.ErrConflict
	}

	if _, err := s.indexer.WritePage(id, content); err != nil {
		return nil, false, fmt.Errorf("pageservice: save %s: %w", id, err)
	}
	detail, err := s.buildPageDetail(id, content)
	return detail, created, err
}

// DeletePage removes a page from storage and from the index.
func (s *Service) DeletePage(_ context.Context, id models.PageID) error {
	if _, err := s.indexer.DeletePage(id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return nil
}

// ListPages returns the pages of a namespace sorted by name.
func (s *Service) ListPages(_ context.Context, ns models.PageNamespace) ([]PageListItem, error) {
	metas, err := s.store.List(ns)
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID.Name < metas[j].ID.Name })
	items := make([]PageListItem, len(metas))
	for i, m := range metas {
		items[i] = PageListItem{
			ID:        m.ID.String(),
			Namespace: m.ID.Namespace.String(),
			Name:      string(m.ID.Name),
			Checksum:  m.Checksum,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return items, nil
}

// ListTodos returns paginated todos from the mirror with the total count.
func (s *Service) ListTodos(_ context.Context, q TodoQuery) ([]TodoItem, int, error) {
	if q.State != "" {
		if _, err := models.ParseTodoState(q.State); err != nil {
			return nil, 0, err
		}
	}
	rows, total, err := s.db.ListTodos(index.TodoFilter{Tag: q.Tag, State: q.State, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return nil, 0, err
	}
	items := make([]TodoItem, len(rows))
	for i, r := range rows {
		items[i] = TodoItem{
			ID:          r.ID,
			Page:        r.PageKey,
			PageName:    r.PageName,
			Namespace:   r.Namespace,
			BlockNumber: r.BlockNumber,
			State:       r.State,
			Text:        r.Text,
			Tags:        nonNilSlice(r.Tags),
		}
	}
	return items, total, nil
}

// IndexedTodos filters the published index directly, without the mirror.
// A non-positive Limit returns every match after Offset.
func (s *Service) IndexedTodos(q TodoQuery) ([]TodoItem, int, error) {
	tq := todo.Query{Tag: models.PageName(q.Tag)}
	if q.State != "" {
		st, err := models.ParseTodoState(q.State)
		if err != nil {
			return nil, 0, err
		}
		tq.State = &st
	}
	entries := s.indexer.Publisher().Index().Filter(tq)
	total := len(entries)
	if q.Offset > 0 {
		entries = entries[min(q.Offset, total):]
	}
	if q.Limit > 0 && q.Limit < len(entries) {
		entries = entries[:q.Limit]
	}
	items := make([]TodoItem, len(entries))
	for i, e := range entries {
		items[i] = itemFromEntry(e)
	}
	return items, total, nil
}

// Tags summarises the published index per tag.
func (s *Service) Tags(_ context.Context) []todo.TagSummary {
	return nonNilSlice(s.indexer.Publisher().Index().Tags())
}

func (s *Service) read(id models.PageID) ([]byte, error) {
	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// buildPageDetail constructs a PageDetail from raw data without re-reading the file.
func (s *Service) buildPageDetail(id models.PageID, data []byte) (*PageDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	var todos []TodoItem
	for _, e := range s.indexer.Publisher().Index().PageEntries(id.Name) {
		if e.Source.PageID != id {
			continue
		}
		todos = append(todos, itemFromEntry(e))
	}
	return &PageDetail{
		ID:          id.String(),
		Namespace:   id.Namespace.String(),
		Name:        string(id.Name),
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Frontmatter: res.Frontmatter,
		Links:       nonNilSlice(res.Links),
		Blocks:      len(res.Page.Blocks),
		Todos:       nonNilSlice(todos),
	}, nil
}

func itemFromEntry(e models.TodoIndexEntry) TodoItem {
	tags := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = string(t)
	}
	return TodoItem{
		ID:          index.TodoID(e.Source),
		Page:        e.Source.PageID.String(),
		PageName:    string(e.Source.PageName),
		Namespace:   e.Source.Namespace.String(),
		BlockNumber: e.Source.BlockNumber,
		State:       e.State.String(),
		Text:        e.Block.Text(),
		Tags:        tags,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
