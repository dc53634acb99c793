package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/pageservice"
	"github.com/starford/outline/internal/testutil"
)

type notifications struct {
	mu     sync.Mutex
	events []string
}

func (n *notifications) record(kind string, id models.PageID) {
	n.mu.Lock()
	n.events = append(n.events, kind+":"+id.String())
	n.mu.Unlock()
}

// testEnv seeds a graph and returns a router over it. A non-empty authToken
// enables token mode.
func testEnv(t *testing.T, authToken string, pages map[models.PageID]string) http.Handler {
	t.Helper()
	router, _ := testEnvFull(t, RouterConfig{AuthEnabled: authToken != "", Token: authToken}, pages)
	return router
}

func testEnvFull(t *testing.T, cfg RouterConfig, pages map[models.PageID]string) (http.Handler, *notifications) {
	t.Helper()
	env := testutil.NewEnv(t, pages)
	svc := pageservice.NewService(env.Store, env.DB, env.Indexer)
	n := &notifications{}
	if cfg.Notify == nil {
		cfg.Notify = n.record
	}
	return NewRouter(svc, cfg), n
}

func do(t *testing.T, router http.Handler, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var seeded = map[models.PageID]string{
	models.UserPageID("Home"):          "- [[Proj]]\n  - [ ] write docs\n  - [x] ship v1\n- [ ] loose end\n",
	models.UserPageID("Proj"):          "- [ ] plan\n",
	models.JournalPageID("2024_01_01"): "- [[Proj]]\n  - [ ] journal task\n",
}

func TestListTodos(t *testing.T) {
	router := testEnv(t, "", seeded)

	w := do(t, router, http.MethodGet, "/todos", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TodoListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 5 || len(resp.Todos) != 5 {
		t.Fatalf("total = %d, todos = %d", resp.Total, len(resp.Todos))
	}
	// User pages by name, then journals.
	if resp.Todos[0].PageName != "Home" || resp.Todos[4].Namespace != "journal" {
		t.Errorf("order = %+v", resp.Todos)
	}
	if resp.Todos[0].HTML != "" {
		t.Error("html should only be rendered on request")
	}
}

func TestListTodos_Filters(t *testing.T) {
	router := testEnv(t, "", seeded)

	var resp TodoListResponse
	w := do(t, router, http.MethodGet, "/todos?tag=Proj&state=open", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 {
		t.Errorf("tag+state total = %d, want 3", resp.Total)
	}
	for _, td := range resp.Todos {
		if td.State != "open" {
			t.Errorf("state filter leaked %+v", td)
		}
	}

	w = do(t, router, http.MethodGet, "/todos?limit=2&offset=1", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 5 || len(resp.Todos) != 2 {
		t.Errorf("pagination total = %d, len = %d", resp.Total, len(resp.Todos))
	}

	w = do(t, router, http.MethodGet, "/todos?state=someday", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad state = %d, want 400", w.Code)
	}
}

func TestListTodos_RenderHTML(t *testing.T) {
	router := testEnv(t, "", map[models.PageID]string{
		models.UserPageID("A"): "- [ ] call [[Bob]] about **budget**\n",
	})

	var resp TodoListResponse
	w := do(t, router, http.MethodGet, "/todos?render=html", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Todos) != 1 {
		t.Fatalf("todos = %d", len(resp.Todos))
	}
	html := resp.Todos[0].HTML
	for _, want := range []string{`type="checkbox"`, `<strong>budget</strong>`, `href="/api/pages/user/Bob"`} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q: %s", want, html)
		}
	}
}

func TestTags(t *testing.T) {
	router := testEnv(t, "", seeded)

	var resp TagListResponse
	w := do(t, router, http.MethodGet, "/tags", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	counts := map[string][2]int{}
	for _, tag := range resp.Tags {
		counts[string(tag.Tag)] = [2]int{tag.Open, tag.Done}
	}
	if counts["Proj"] != [2]int{3, 1} {
		t.Errorf("Proj = %v, want [3 1]", counts["Proj"])
	}
	if counts["Home"] != [2]int{2, 1} {
		t.Errorf("Home = %v, want [2 1]", counts["Home"])
	}
}

func TestSaveAndGetPage(t *testing.T) {
	router, n := testEnvFull(t, RouterConfig{}, nil)

	w := do(t, router, http.MethodPut, "/pages/user/Inbox", SavePageRequest{Content: "- [ ] triage\n"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	w = do(t, router, http.MethodGet, "/pages/user/Inbox?render=html", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var page PageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.PageDetail == nil || page.Name != "Inbox" || len(page.Todos) != 1 {
		t.Errorf("page = %+v", page)
	}
	if !strings.Contains(page.HTML, "<li>") {
		t.Errorf("rendered body = %q", page.HTML)
	}

	w = do(t, router, http.MethodPut, "/pages/user/Inbox", SavePageRequest{Content: "- [x] triage\n"}, map[string]string{"If-Match": etag})
	if w.Code != http.StatusOK {
		t.Errorf("update status = %d", w.Code)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) != 2 || n.events[0] != "created:%%user-page/Inbox" || n.events[1] != "updated:%%user-page/Inbox" {
		t.Errorf("notifications = %v", n.events)
	}
}

func TestSavePage_OptimisticLocking(t *testing.T) {
	router := testEnv(t, "", seeded)

	w := do(t, router, http.MethodPut, "/pages/user/Proj", SavePageRequest{Content: "- [x] plan\n"}, map[string]string{"If-Match": `"deadbeef"`})
	if w.Code != http.StatusConflict {
		t.Errorf("stale if-match = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/pages/user/Proj", SavePageRequest{Content: "- [x] plan\n"}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("no if-match = %d, want 200", w.Code)
	}
}

func TestSavePage_BadRequests(t *testing.T) {
	router := testEnv(t, "", nil)

	if w := do(t, router, http.MethodPut, "/pages/user/A", SavePageRequest{}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty content = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/pages/archive/A", SavePageRequest{Content: "- a"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad namespace = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPut, "/pages/user/A", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestGetPage_EncodedSlash(t *testing.T) {
	router := testEnv(t, "", nil)

	w := do(t, router, http.MethodPut, "/pages/user/area%2Fhome", SavePageRequest{Content: "- x\n"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var page PageResponse
	w = do(t, router, http.MethodGet, "/pages/user/area%2Fhome", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if w.Code != http.StatusOK || page.Name != "area/home" {
		t.Errorf("get = %d, page = %+v", w.Code, page)
	}
}

func TestGetPage_NotFound(t *testing.T) {
	router := testEnv(t, "", nil)

	if w := do(t, router, http.MethodGet, "/pages/user/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing page = %d, want 404", w.Code)
	}
}

func TestDeletePage(t *testing.T) {
	router, n := testEnvFull(t, RouterConfig{}, seeded)

	if w := do(t, router, http.MethodDelete, "/pages/journal/2024_01_01", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/pages/journal/2024_01_01", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/pages/journal/2024_01_01", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", w.Code)
	}

	var resp TodoListResponse
	w := do(t, router, http.MethodGet, "/todos", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 4 {
		t.Errorf("todos after delete = %d, want 4", resp.Total)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) != 1 || n.events[0] != "deleted:%%journal-page/2024_01_01" {
		t.Errorf("notifications = %v", n.events)
	}
}

func TestListPages(t *testing.T) {
	router := testEnv(t, "", seeded)

	var resp PageListResponse
	w := do(t, router, http.MethodGet, "/pages/user", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Pages) != 2 || resp.Pages[0].Name != "Home" {
		t.Errorf("pages = %+v", resp.Pages)
	}
	if w := do(t, router, http.MethodGet, "/pages/other", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad namespace = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123", nil)

	w := do(t, router, http.MethodPut, "/pages/user/auth", SavePageRequest{Content: "- test"}, map[string]string{"Authorization": "Bearer secret123"})
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123", nil)

	if w := do(t, router, http.MethodGet, "/todos", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123", nil)

	if w := do(t, router, http.MethodGet, "/todos", nil, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "", nil)

	if w := do(t, router, http.MethodGet, "/todos", nil, nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// blockingEvents writes SSE headers and blocks until the client goes away.
var blockingEvents = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvFull(t, RouterConfig{AuthEnabled: true, Token: "secret", Events: blockingEvents}, nil)

	if w := do(t, router, http.MethodGet, "/events", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvFull(t, RouterConfig{AuthEnabled: true, Token: "tok", Events: blockingEvents}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestLinkify(t *testing.T) {
	cases := map[string]string{
		"see [[Proj]]":              "see [Proj](/api/pages/user/Proj)",
		"[[journal/2024_01_01]]":    "[2024_01_01](/api/pages/journal/2024_01_01)",
		"[[Big Plan|the plan]] now": "[the plan](/api/pages/user/Big%20Plan) now",
		"[[]] stays":                "[[]] stays",
	}
	for in, want := range cases {
		if got := linkify(in); got != want {
			t.Errorf("linkify(%q) = %q, want %q", in, got, want)
		}
	}
}
