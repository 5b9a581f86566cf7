package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpadapter "github.com/kirillkom/segment-advisor/internal/adapters/mcp"
	"github.com/kirillkom/segment-advisor/internal/bootstrap"
	"github.com/kirillkom/segment-advisor/internal/config"
	"github.com/kirillkom/segment-advisor/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol, so logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "mcp", Sessions: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.PrimeCoreSet(ctx)
	go func() {
		if err := app.Corpus.WatchCorpus(ctx); err != nil {
			slog.Error("corpus_watch_failed", "error", err)
		}
	}()
	go app.PurgeIdleSessions(ctx, 10*time.Minute)

	server := mcpadapter.NewServer("segment-advisor", app.Turns, app.Turns)
	if err := server.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
