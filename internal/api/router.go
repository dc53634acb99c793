package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outline/internal/pageservice"
)

// RouterConfig carries the optional pieces of the API router.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Notify is told about pages saved or deleted through the API.
	Notify NotifyFunc
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *pageservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.Notify)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Todo index.
	r.Get("/todos", h.ListTodos)
	r.Get("/tags", h.Tags)

	// Pages CRUD.
	r.Get("/pages/{namespace}", h.ListPages)
	r.Get("/pages/{namespace}/*", h.GetPage)
	r.Put("/pages/{namespace}/*", h.SavePage)
	r.Delete("/pages/{namespace}/*", h.DeletePage)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
