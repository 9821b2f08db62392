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

	"github.com/starford/imgnote/internal/api"
	"github.com/starford/imgnote/internal/archive"
	"github.com/starford/imgnote/internal/index"
	"github.com/starford/imgnote/internal/noteservice"
	"github.com/starford/imgnote/internal/notestore"
	"github.com/starford/imgnote/internal/pathstore"
	"github.com/starford/imgnote/internal/sse"
)

// runtime is the set of components every command works against.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *index.DB
	svc    *noteservice.Service
}

func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

// setup applies opts, installs the JSON logger and opens the store, the
// index and the note service. pub may be nil.
func setup(opts []Option, pub noteservice.Publisher) (*runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	ptr := pathstore.New(cfg.Store.StateFile, cfg.Store.Path)
	base, err := ptr.Get()
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", base),
		slog.String("state_file", cfg.Store.StateFile),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if cfg.Store.TempDir != "" {
		if err := os.MkdirAll(cfg.Store.TempDir, 0o755); err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
	}

	// Initialize the note store.
	store, err := notestore.Open(base, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	codec := archive.New(
		archive.WithLevel(cfg.Archive.CompressionLevel),
		archive.WithTempDir(cfg.Store.TempDir),
		archive.WithLogger(logger),
	)
	svcOpts := []noteservice.Option{
		noteservice.WithIndex(db),
		noteservice.WithCodec(codec),
		noteservice.WithPointer(ptr),
		noteservice.WithLogger(logger),
	}
	if pub != nil {
		svcOpts = append(svcOpts, noteservice.WithPublisher(pub))
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		db:     db,
		svc:    noteservice.New(store, svcOpts...),
	}, nil
}

// Run starts the HTTP server, the file watcher and the SSE broker and
// blocks until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(opts, broker)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger, svc := rt.cfg, rt.logger, rt.svc

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Store.TempDir)

	// Build chi router.
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
		if _, err := os.Stat(svc.BasePath()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the active store; restart on the new base after a migration.
	g.Go(func() error {
		watchStore(gCtx, rt.db, svc, logger, broker.PublishNoteEvent)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup once the HTTP server has been shut down
// so the watcher loop exits too.
var errShutdown = errors.New("shutdown")

// watchStore runs index.Watch over the service's active store until ctx is
// done. After a migration the watcher is restarted on the new base. A
// watcher that fails to start is retried only after the next migration.
func watchStore(ctx context.Context, db *index.DB, svc *noteservice.Service, logger *slog.Logger, cb index.EventCallback) {
	for {
		wctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		store := svc.Store()
		go func() { done <- index.Watch(wctx, db, store, logger, cb) }()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return
		case base := <-svc.Relocated():
			logger.Info("watcher: store relocated, restarting", slog.String("root", base))
			cancel()
			<-done
		case err := <-done:
			cancel()
			if err != nil {
				logger.Warn("watcher: failed", slog.String("error", err.Error()))
			}
			select {
			case <-ctx.Done():
				return
			case <-svc.Relocated():
			}
		}
	}
}
