package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/lemonmeet/meet-relay/internal/config"
	"github.com/lemonmeet/meet-relay/internal/httpserver"
	"github.com/lemonmeet/meet-relay/internal/metrics"
	"github.com/lemonmeet/meet-relay/internal/room"
	"github.com/lemonmeet/meet-relay/internal/router"
	"github.com/lemonmeet/meet-relay/internal/session"
	"github.com/lemonmeet/meet-relay/internal/signaling"
	"github.com/lemonmeet/meet-relay/internal/store"
	"github.com/lemonmeet/meet-relay/internal/turnrest"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting meet-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"max_signaling_message_bytes", cfg.MaxMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxMessagesPerSecond,
		"signaling_ws_idle_timeout", cfg.WSIdleTimeout,
		"signaling_ws_ping_interval", cfg.WSPingInterval,
		"outbox_capacity", cfg.OutboxCapacity,
		"ice_servers", len(cfg.ICEServers),
		"turn_rest_enabled", cfg.TURNREST.Enabled(),
		"persistence_enabled", cfg.DataDir != "",
	)

	logStartupWarnings(logger, cfg)

	m := metrics.New()

	var turnMinter *turnrest.Minter
	if cfg.TURNREST.Enabled() {
		turnMinter, err = turnrest.NewMinter(cfg.TURNREST.SharedSecret, cfg.TURNREST.UsernamePrefix, cfg.TURNREST.TTL)
		if err != nil {
			logger.Error("failed to configure turn rest credentials", "err", err)
			os.Exit(2)
		}
	}

	var sink store.Sink = store.NopSink{}
	var meetings httpserver.MeetingReader
	if cfg.DataDir != "" {
		db, err := store.Open(cfg.DataDir, logger, m, cfg.StoreQueueSize)
		if err != nil {
			logger.Error("failed to open meeting store", "err", err, "data_dir", cfg.DataDir)
			os.Exit(2)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("meeting store close failed", "err", err)
			}
		}()
		sink = db
		meetings = db
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built}, m, meetings, turnMinter)

	registry := session.NewRegistry()
	rooms := room.NewDirectory()
	sig := signaling.NewServer(cfg, logger, registry, rooms, router.New(rooms, logger, m), sink, m)
	sig.RegisterRoutes(srv.Mux())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
