package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/co-cddo/webcaf/internal/assessment"
	"github.com/co-cddo/webcaf/internal/framework"
	"github.com/co-cddo/webcaf/internal/platform/cache"
	"github.com/co-cddo/webcaf/internal/platform/config"
	"github.com/co-cddo/webcaf/internal/platform/database"
	"github.com/co-cddo/webcaf/internal/route"
	"github.com/co-cddo/webcaf/internal/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	r, err := loadRoute(cfg.Framework)
	if err != nil {
		slog.Error("failed to build route", "path", cfg.Framework.Path, "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler, cleanup, err := newHandler(ctx, cfg, r)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "pages", r.Len(), "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from WEBCAF_LOG_LEVEL and WEBCAF_LOG_FORMAT.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// loadRoute reads the framework document, narrows it to the configured scope
// and compiles the page route.
func loadRoute(cfg config.FrameworkConfig) (*route.Route, error) {
	fw, err := framework.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	scope := framework.Scope(cfg.Scope)
	if !scope.Valid() {
		return nil, fmt.Errorf("unknown scope %q", cfg.Scope)
	}
	r, err := route.Compile(fw.FilterByScope(scope), cfg.ExitTarget, route.CompileOptions{})
	if err != nil {
		return nil, fmt.Errorf("compiling route: %w", err)
	}
	slog.Info("route compiled", "scope", cfg.Scope, "pages", r.Len())
	return r, nil
}

// newHandler wires the store backend, optional cache and HTTP handlers. The
// returned cleanup closes any connections that were opened.
func newHandler(ctx context.Context, cfg *config.Config, r *route.Route) (http.Handler, func(), error) {
	var (
		closers []func()
		store   assessment.Store
		events  assessment.EventLogger = assessment.NopEventLogger{}
		opts    []server.Option
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)

		pg, err := assessment.NewPostgresStore(db.Pool)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		store = pg
		events = assessment.NewPostgresEventLogger(db.Pool)
		opts = append(opts, server.WithHealthCheck("database", db))
	default:
		store = assessment.NewMemoryStore()
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing cache", "error", err)
			}
		})
		store = assessment.NewCachedStore(store, c.Client, cfg.Cache.TTL)
		opts = append(opts, server.WithHealthCheck("cache", c))
	}

	hub := server.NewHub()
	svc := assessment.NewService(r, store,
		assessment.WithEventLogger(events),
		assessment.WithNotifier(hub),
		assessment.WithFrameworkID(cfg.Framework.ID),
	)
	opts = append(opts, server.WithHub(hub))
	return server.New(svc, opts...).Handler(), cleanup, nil
}
