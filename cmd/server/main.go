package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/config"
	"github.com/channelcast/backend/internal/logging"
	"github.com/channelcast/backend/internal/router"
	"github.com/channelcast/backend/internal/sentry"
)

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	flush, err := sentry.Init(cfg.SentryDSN, cfg.SentryEnvironment)
	if err != nil {
		slog.Error("failed to initialize sentry", slog.Any("error", err))
		os.Exit(1)
	}
	defer flush()

	if err := run(cfg); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := channel.NewRegistry(
		channel.WithDefaultCapacity(cfg.DefaultChannelCapacity),
		channel.WithMaxCapacity(cfg.MaxChannelCapacity),
	)

	// Attached clients outlive their HTTP request once hijacked; deriving
	// request contexts from connCtx lets shutdown reach them.
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(ctx, cfg, registry),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return connCtx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", slog.Int("channels", registry.Len()))

		cancelConns()
		registry.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
