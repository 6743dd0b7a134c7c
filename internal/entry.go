// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/casemap/internal/api"
	"github.com/starford/casemap/internal/editor"
	"github.com/starford/casemap/internal/index"
	"github.com/starford/casemap/internal/mapservice"
	"github.com/starford/casemap/internal/mcpserver"
	"github.com/starford/casemap/internal/persist"
	"github.com/starford/casemap/internal/sse"
	"github.com/starford/casemap/internal/storage"
	"github.com/starford/casemap/internal/timeline"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger initializes the structured JSON logger and makes it the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openData prepares the data directory and its index.
func (a *application) openData(logger *slog.Logger) (*storage.FS, *index.DB, error) {
	cfg := a.config
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, nil
}

// Run starts the persistence server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, db, err := app.openData(logger)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(2*time.Second, 30*time.Second)
	defer broker.Close()

	svc := mapservice.NewService(store, db,
		mapservice.WithChangeFunc(broker.PublishMapEvent),
		mapservice.WithLogger(logger))
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.App.HTTP.CORSOrigins, broker)

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
		w.Header().Set("Content-Type", "application/json")
		if _, _, err := db.ListMaps(1, 0); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// External edits to map files reach SSE clients through the watcher.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, store, cfg.Vault.Path, logger, broker.PublishMapEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the editor tools over stdio. Maps are saved through the
// persistence endpoint; case briefs are read from the local data directory.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	store, db, err := app.openData(logger)
	if err != nil {
		return err
	}
	defer db.Close()

	gate, err := persist.New(cfg.Persist.Endpoint,
		persist.WithMode(persist.Mode(cfg.Persist.Mode)),
		persist.WithToken(cfg.Persist.Token),
		persist.WithSaveTimeout(cfg.Persist.SaveTimeout),
		persist.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}
	// Outstanding saves finish before the process exits.
	defer gate.Wait()

	srv := mcpserver.New(mapservice.NewService(store, db, mapservice.WithLogger(logger)), gate,
		mcpserver.WithEditorOptions(app.editorOptions(logger)...),
		mcpserver.WithLogger(logger))

	logger.Info("MCP server starting",
		slog.String("persistence_endpoint", cfg.Persist.Endpoint),
		slog.String("persistence_mode", cfg.Persist.Mode))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (a *application) editorOptions(logger *slog.Logger) []editor.Option {
	cfg := a.config.Editor

	tl := timeline.DefaultConfig()
	tl.RangeStart, tl.RangeEnd = cfg.TimelineStart, cfg.TimelineEnd

	canvas := editor.DefaultCanvas()
	canvas.Width = cfg.CanvasWidth

	layout := editor.DefaultLayout()
	layout.LaneX = cfg.LaneX

	return []editor.Option{
		editor.WithTimeline(tl),
		editor.WithCanvas(canvas),
		editor.WithLayout(layout),
		editor.WithLogger(logger),
	}
}
