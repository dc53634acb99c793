package pageservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/checksum"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/testutil"
)

func newService(t *testing.T, pages map[models.PageID]string) *Service {
	t.Helper()
	env := testutil.NewEnv(t, pages)
	return NewService(env.Store, env.DB, env.Indexer)
}

func TestGetPage(t *testing.T) {
	svc := newService(t, map[models.PageID]string{
		models.UserPageID("Proj"): "- [[Home]]\n  - [ ] write docs\n- plain\n",
	})

	got, err := svc.GetPage(context.Background(), models.UserPageID("Proj"))
	require.NoError(t, err)
	assert.Equal(t, "Proj", got.Name)
	assert.Equal(t, "user", got.Namespace)
	assert.Equal(t, 3, got.Blocks)
	assert.Equal(t, []string{"Home"}, got.Links)
	require.Len(t, got.Todos, 1)
	assert.Equal(t, []string{"Proj", "Home"}, got.Todos[0].Tags)
	assert.Equal(t, "open", got.Todos[0].State)
	assert.Equal(t, 1, got.Todos[0].BlockNumber)
}

func TestGetPage_NotFound(t *testing.T) {
	svc := newService(t, nil)
	_, err := svc.GetPage(context.Background(), models.UserPageID("missing"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSavePage_CreateAndUpdate(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	id := models.UserPageID("Inbox")

	got, created, err := svc.SavePage(ctx, id, []byte("- [ ] first\n"), "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, got.Todos, 1)

	got, created, err = svc.SavePage(ctx, id, []byte("- [x] first\n- [ ] second\n"), got.Checksum)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, got.Todos, 2)
	assert.Equal(t, "done", got.Todos[0].State)

	items, total, err := svc.ListTodos(ctx, TodoQuery{State: "open"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "[ ] second", items[0].Text)
}

func TestSavePage_Conflict(t *testing.T) {
	svc := newService(t, map[models.PageID]string{models.UserPageID("A"): "- [ ] a\n"})
	ctx := context.Background()

	_, _, err := svc.SavePage(ctx, models.UserPageID("A"), []byte("- [x] a\n"), "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = svc.SavePage(ctx, models.UserPageID("B"), []byte("- b\n"), checksum.Sum([]byte("x")))
	assert.ErrorIs(t, err, apperr.ErrConflict, "if-match on a missing page")

	_, _, err = svc.SavePage(ctx, models.UserPageID("A"), []byte("- [x] a\n"), `"`+checksum.Sum([]byte("- [ ] a\n"))+`"`)
	assert.NoError(t, err, "quoted etag should match")
}

func TestSavePage_EmptyName(t *testing.T) {
	svc := newService(t, nil)
	_, _, err := svc.SavePage(context.Background(), models.UserPageID(""), []byte("- a\n"), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidPage)
}

func TestDeletePage(t *testing.T) {
	svc := newService(t, map[models.PageID]string{
		models.UserPageID("A"):    "- [ ] a\n",
		models.JournalPageID("A"): "- [ ] journal a\n",
	})
	ctx := context.Background()

	require.NoError(t, svc.DeletePage(ctx, models.UserPageID("A")))

	items, total, err := svc.ListTodos(ctx, TodoQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "journal", items[0].Namespace)

	assert.ErrorIs(t, svc.DeletePage(ctx, models.UserPageID("A")), apperr.ErrNotFound)
}

func TestListPages(t *testing.T) {
	svc := newService(t, map[models.PageID]string{
		models.UserPageID("b"):             "- b\n",
		models.UserPageID("a"):             "- a\n",
		models.JournalPageID("2024_01_01"): "- j\n",
	})
	pages, err := svc.ListPages(context.Background(), models.UserPage)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "a", pages[0].Name)
	assert.Equal(t, "b", pages[1].Name)
}

func TestListTodos_TagFilterAndBadState(t *testing.T) {
	svc := newService(t, map[models.PageID]string{
		models.UserPageID("Home"): "- [[Proj]]\n  - [ ] under proj\n- [ ] loose\n",
	})
	ctx := context.Background()

	items, total, err := svc.ListTodos(ctx, TodoQuery{Tag: "Proj"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"Home", "Proj"}, items[0].Tags)

	_, _, err = svc.ListTodos(ctx, TodoQuery{State: "maybe"})
	assert.Error(t, err)
}

func TestIndexedTodos_MatchesMirror(t *testing.T) {
	svc := newService(t, map[models.PageID]string{
		models.UserPageID("Home"):          "- [[Proj]]\n  - [ ] under proj\n  - [x] shipped\n- [ ] loose\n",
		models.JournalPageID("2024_01_01"): "- [ ] journal [[Proj]]\n",
	})
	ctx := context.Background()

	for _, q := range []TodoQuery{{}, {Tag: "Proj"}, {State: "open"}, {Tag: "Proj", State: "done"}} {
		fromIndex, total, err := svc.IndexedTodos(q)
		require.NoError(t, err)
		fromMirror, mirrorTotal, err := svc.ListTodos(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, mirrorTotal, total, "query %+v", q)
		assert.Equal(t, fromMirror, fromIndex, "query %+v", q)
	}

	page, total, err := svc.IndexedTodos(TodoQuery{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "[x] shipped", page[0].Text)

	page, _, err = svc.IndexedTodos(TodoQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, _, err = svc.IndexedTodos(TodoQuery{State: "maybe"})
	assert.Error(t, err)
}

func TestTags(t *testing.T) {
	svc := newService(t, map[models.PageID]string{
		models.UserPageID("Home"): "- [[Proj]]\n  - [ ] a\n  - [x] b\n",
	})
	tags := svc.Tags(context.Background())
	require.Len(t, tags, 2)
	for _, tag := range tags {
		assert.Equal(t, 1, tag.Open)
		assert.Equal(t, 1, tag.Done)
	}
}
