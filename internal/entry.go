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

	"golang.org/x/sync/errgroup"

	"github.com/starford/getnotes/internal/index"
	"github.com/starford/getnotes/internal/mcpserver"
	"github.com/starford/getnotes/internal/sse"
)

// Run starts the MCP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := New(opts...)
	if err != nil {
		return err
	}
	return app.ServeMCP(ctx)
}

// ServeMCP serves the MCP tools on the configured transport until ctx is
// done, stdin closes (stdio) or a shutdown signal arrives (sse).
func (a *App) ServeMCP(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger
	rs := a.Resolve(Overrides{})

	logger.Info("configuration loaded",
		slog.String("transport", cfg.MCP.Transport),
		slog.String("output", rs.Output),
		slog.Bool("index", cfg.Index.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, manifest, err := a.Export(rs.Output)
	if err != nil {
		return err
	}

	db, err := a.OpenIndex()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := index.Sync(db, store, logger); err != nil {
			logger.Warn("initial index sync failed", slog.String("error", err.Error()))
		}
	}

	deps := mcpserver.Deps{
		Connect: func(context.Context) (mcpserver.API, error) {
			c, err := a.Client("")
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Store:    store,
		Manifest: manifest,
		Index:    db,
		Fetcher:  a.Fetcher(),
		Logger:   logger,
		Sync:     a.SyncOptions(rs),
	}

	if cfg.MCP.Transport == TransportStdio {
		srv := mcpserver.New(deps)
		logger.Info("serving mcp on stdio")
		if err := srv.Listen(ctx, a.stdin, a.stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	}

	broker := sse.NewBroker(cfg.MCP.EventThrottle)
	defer broker.Close()
	deps.Events = broker
	srv := mcpserver.New(deps)

	transport := srv.SSE(cfg.MCP.PublicURL())
	var token string
	if cfg.Auth.AuthEnabled() {
		token = cfg.Auth.Token
	}
	httpServer := &http.Server{
		Addr: cfg.MCP.HTTP.Address(),
		Handler: mcpserver.NewRouter(transport, mcpserver.RouterOptions{
			Token:  token,
			Events: broker,
			Logger: logger,
		}),
	}

	g, gCtx := errgroup.WithContext(ctx)

	if db != nil {
		g.Go(func() error {
			if err := index.Watch(gCtx, db, store, store.Root(), logger, broker.PublishNoteEvent); err != nil {
				logger.Warn("index watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting http server",
			slog.String("address", cfg.MCP.HTTP.Address()),
			slog.String("sse_endpoint", cfg.MCP.PublicURL()+"/sse"))
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
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := transport.Shutdown(shutdownCtx); err != nil {
			logger.Error("sse transport shutdown error", slog.String("error", err.Error()))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been asked to stop so
// the watcher exits too.
var errShutdown = errors.New("shutdown")
