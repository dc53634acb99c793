package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outline/internal/apperr"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/pageservice"
)

// NotifyFunc is told about page changes made through the API.
type NotifyFunc func(kind string, id models.PageID)

// Handler holds API route handlers.
type Handler struct {
	svc    *pageservice.Service
	notify NotifyFunc
}

// NewHandler creates a new Handler. notify may be nil.
func NewHandler(svc *pageservice.Service, notify NotifyFunc) *Handler {
	if notify == nil {
		notify = func(string, models.PageID) {}
	}
	return &Handler{svc: svc, notify: notify}
}

// pageID extracts the page id from /pages/{namespace}/*. Encoded slashes in
// the name are decoded, so "a%2Fb" names the page "a/b".
func pageID(r *http.Request) (models.PageID, error) {
	ns, err := models.ParseNamespace(chi.URLParam(r, "namespace"))
	if err != nil {
		return models.PageID{}, err
	}
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	if name == "" {
		return models.PageID{}, apperr.ErrInvalidPage
	}
	return models.PageID{Namespace: ns, Name: models.PageName(name)}, nil
}

func wantHTML(r *http.Request) bool {
	return r.URL.Query().Get("render") == "html"
}

// ListTodos handles GET /api/todos.
//
//	@Summary		List todos in index order
//	@Tags			todos
//	@Produce		json
//	@Param			tag		query		string	false	"Only todos carrying this tag"
//	@Param			state	query		string	false	"Todo state"	Enums(open, done)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			render	query		string	false	"Render todo text"	Enums(html)
//	@Success		200		{object}	TodoListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	state := q.Get("state")
	if state != "" {
		if _, err := models.ParseTodoState(state); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("state must be open or done"))
			return
		}
	}

	items, total, err := h.svc.ListTodos(r.Context(), pageservice.TodoQuery{
		Tag:    q.Get("tag"),
		State:  state,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		slog.Error("list todos failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]TodoItem, len(items))
	for i, it := range items {
		out[i] = TodoItem{TodoItem: it}
		if wantHTML(r) {
			html, err := renderTodoHTML(it.Text)
			if err != nil {
				slog.Warn("render todo failed", slog.String("id", it.ID), slog.String("error", err.Error()))
				continue
			}
			out[i].HTML = html
		}
	}
	writeJSON(w, http.StatusOK, TodoListResponse{Todos: out, Total: total})
}

// Tags handles GET /api/tags.
//
//	@Summary		Open and done counts per tag
//	@Tags			todos
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagListResponse{Tags: h.svc.Tags(r.Context())})
}

// ListPages handles GET /api/pages/{namespace}.
//
//	@Summary		List the pages of a namespace
//	@Tags			pages
//	@Produce		json
//	@Param			namespace	path		string	true	"Namespace"	Enums(user, journal)
//	@Success		200			{object}	PageListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{namespace} [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	ns, err := models.ParseNamespace(chi.URLParam(r, "namespace"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("namespace must be user or journal"))
		return
	}
	pages, err := h.svc.ListPages(r.Context(), ns)
	if err != nil {
		slog.Error("list pages failed", slog.String("namespace", ns.String()), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages})
}

// GetPage handles GET /api/pages/{namespace}/*.
//
//	@Summary		Get a single page with its todos
//	@Tags			pages
//	@Produce		json
//	@Param			namespace	path		string	true	"Namespace"	Enums(user, journal)
//	@Param			name		path		string	true	"Page name"
//	@Param			render		query		string	false	"Render the page body"	Enums(html)
//	@Success		200			{object}	PageResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{namespace}/{name} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	id, err := pageID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("namespace and page name are required"))
		return
	}
	page, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get page failed", slog.String("page", id.String()), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	resp := PageResponse{PageDetail: page}
	if wantHTML(r) {
		if resp.HTML, err = renderMarkdown(page.Content); err != nil {
			slog.Warn("render page failed", slog.String("page", id.String()), slog.String("error", err.Error()))
		}
	}
	w.Header().Set("ETag", `"`+page.Checksum+`"`)
	writeJSON(w, http.StatusOK, resp)
}

// SavePage handles PUT /api/pages/{namespace}/*.
//
//	@Summary		Create or replace a page with optimistic concurrency
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			namespace	path		string			true	"Namespace"	Enums(user, journal)
//	@Param			name		path		string			true	"Page name"
//	@Param			If-Match	header		string			false	"SHA-256 checksum of the stored page"
//	@Param			body		body		SavePageRequest	true	"Page content"
//	@Success		200			{object}	PageDetail
//	@Success		201			{object}	PageDetail
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{namespace}/{name} [put]
func (h *Handler) SavePage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id, err := pageID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("namespace and page name are required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	var req SavePageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	page, created, err := h.svc.SavePage(r.Context(), id, []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		case errors.Is(err, apperr.ErrInvalidPage):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid page"))
		default:
			slog.Error("save page failed", slog.String("page", id.String()), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	status, kind := http.StatusOK, "updated"
	if created {
		status, kind = http.StatusCreated, "created"
	}
	h.notify(kind, id)
	w.Header().Set("ETag", `"`+page.Checksum+`"`)
	writeJSON(w, status, page)
}

// DeletePage handles DELETE /api/pages/{namespace}/*.
//
//	@Summary		Delete a page
//	@Tags			pages
//	@Param			namespace	path	string	true	"Namespace"	Enums(user, journal)
//	@Param			name		path	string	true	"Page name"
//	@Success		204			"Page deleted"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{namespace}/{name} [delete]
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := pageID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("namespace and page name are required"))
		return
	}
	if err := h.svc.DeletePage(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete page failed", slog.String("page", id.String()), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.notify("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
