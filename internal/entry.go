// Package internal provides the application entry points: the mdbook
// preprocessor itself and the servers exposing the persisted graph.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mdbook-backlinks/internal/api"
	"github.com/starford/mdbook-backlinks/internal/backlinks"
	"github.com/starford/mdbook-backlinks/internal/book"
	"github.com/starford/mdbook-backlinks/internal/mcpserver"
	"github.com/starford/mdbook-backlinks/internal/sse"
	"github.com/starford/mdbook-backlinks/internal/store"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// bookConfig is the [preprocessor.backlinks] table of book.toml.
type bookConfig struct {
	BacklinksConfig
	Database string `json:"database"`
}

// applyBookConfig overrides cfg with the book's own settings. A relative
// database path is resolved against the book root.
func applyBookConfig(cfg *Config, bctx *book.Context) error {
	override := bookConfig{BacklinksConfig: cfg.Backlinks}
	if err := bctx.PreprocessorConfig(backlinks.Name, &override); err != nil {
		return err
	}
	cfg.Backlinks = override.BacklinksConfig
	if override.Database != "" {
		db := override.Database
		if !filepath.IsAbs(db) && bctx.Root != "" {
			db = filepath.Join(bctx.Root, db)
		}
		cfg.Store.Path = db
	}
	if err := cfg.Backlinks.Validate(); err != nil {
		return fmt.Errorf("preprocessor.%s: %w", backlinks.Name, err)
	}
	return nil
}

// Preprocess reads a book from stdin, appends backlinks blocks and writes the
// book to stdout. Nothing is written when the transform fails.
func Preprocess(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := *app.config
	logger := newLogger(app.stderr, cfg.App.LogLevel)

	bctx, b, err := book.ParseInput(app.stdin)
	if err != nil {
		return fmt.Errorf("read book: %w", err)
	}
	warnVersion(logger, cfg.App.MdbookVersion, bctx.MdbookVersion)

	if err := applyBookConfig(&cfg, bctx); err != nil {
		return fmt.Errorf("book config: %w", err)
	}

	res, err := backlinks.NewProcessor(cfg.Backlinks.ProcessorOptions(logger)).Run(b)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}

	if cfg.Store.Path != "" {
		persistGraph(logger, cfg.Store.Path, b, res.Index)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return book.WriteBook(app.stdout, b)
}

// persistGraph stores the graph for serve and mcp. Failures only warn: the
// book itself is already complete.
func persistGraph(logger *slog.Logger, path string, b *book.Book, idx *backlinks.Index) {
	db, err := store.Open(path)
	if err != nil {
		logger.Warn("graph not persisted", slog.String("database", path), slog.String("error", err.Error()))
		return
	}
	defer db.Close()

	changed, err := db.ReplaceGraph(b, idx)
	if err != nil {
		logger.Warn("graph not persisted", slog.String("database", path), slog.String("error", err.Error()))
		return
	}
	logger.Debug("graph persisted", slog.String("database", path), slog.Bool("changed", changed))
}

func healthHandler(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := db.Checksum(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func newHTTPHandler(cfg *Config, db *store.DB, broker *sse.Broker) http.Handler {
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
	r.Get("/health/ready", healthHandler(db))

	r.Mount("/api", api.NewRouter(db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	return r
}

// Serve runs the HTTP API over the persisted graph until ctx is cancelled or
// the process receives SIGINT/SIGTERM.
func Serve(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Store.Require(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database", cfg.Store.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newHTTPHandler(cfg, db, broker),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Graph replacements by preprocessor runs become SSE events.
	g.Go(func() error {
		if err := store.Watch(gCtx, db, logger, broker.PublishGraphEvent); err != nil {
			logger.Warn("watcher disabled", slog.String("error", err.Error()))
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
		<-gCtx.Done()
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

// ServeMCP serves the persisted graph over MCP on the standard streams.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Store.Require(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("database", cfg.Store.Path))

	srv := mcpserver.New(db, cfg.Backlinks.Heading)
	errLog := slog.NewLogLogger(logger.Handler(), slog.LevelError)
	if err := srv.Listen(ctx, app.stdin, app.stdout, errLog); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// Supports reports whether renderer can be used with the preprocessor.
// Backlinks are plain Markdown, so every renderer is supported.
func Supports(renderer string) bool {
	return true
}
