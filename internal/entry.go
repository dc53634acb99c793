// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/outline/internal/api"
	"github.com/starford/outline/internal/index"
	"github.com/starford/outline/internal/mcpserver"
	"github.com/starford/outline/internal/metrics"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/pageservice"
	"github.com/starford/outline/internal/sse"
	"github.com/starford/outline/internal/storage"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	logger  *slog.Logger
	store   *storage.FS
	db      *index.DB
	metrics *metrics.Metrics
	indexer *index.Indexer
	svc     *pageservice.Service
}

// bootstrap opens the graph and the mirror and runs the initial sync.
// The caller must close rt.db.
func bootstrap(app *application) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("graph_root", cfg.Graph.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("journal_namespace", cfg.Index.JournalNamespace),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Graph.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create graph dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Graph.Root, cfg.Graph.Layout())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	m := metrics.New()
	pub := index.NewPublisher(cfg.Index.JournalSourceNamespace(), m)
	ix := index.NewIndexer(db, pub, store, logger)

	if err := ix.Sync(); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{
		logger:  logger,
		store:   store,
		db:      db,
		metrics: m,
		indexer: ix,
		svc:     pageservice.NewService(store, db, ix),
	}, nil
}

// todoSummary is the payload of todos.updated events.
func (rt *runtime) todoSummary() any {
	open, done := rt.indexer.Publisher().Index().Counts()
	return map[string]int{"open": open, "done": done}
}

// Run starts the HTTP server and the graph watcher.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg := app.config
	logger := rt.logger

	broker := sse.NewBroker(cfg.Index.EventThrottle,
		sse.WithSummary(rt.todoSummary),
		sse.WithHeartbeat(30*time.Second))
	defer broker.Close()

	apiRouter := api.NewRouter(rt.svc, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
		Notify:      broker.PublishPageEvent,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := rt.db.Ping(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rt.metrics.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.indexer.Watch(gCtx, cfg.Index.Debounce, func(kind string, id models.PageID) {
			broker.PublishPageEvent(kind, id)
		})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdio while the watcher keeps the index
// current. Logs go to stderr unless redirected.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	rt, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := rt.indexer.Watch(watchCtx, app.config.Index.Debounce, nil); err != nil {
			rt.logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(rt.svc, app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// TodoFilter narrows PrintTodos.
type TodoFilter struct {
	Tag   string
	State string
}

// PrintTodos syncs the graph once and writes the matching todos of the
// freshly published index as JSON to w.
func PrintTodos(_ context.Context, w io.Writer, f TodoFilter, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(io.Discard)}, opts...))
	rt, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	all, _, err := rt.svc.IndexedTodos(pageservice.TodoQuery{Tag: f.Tag, State: f.State})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(all)
}
