package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/segment-advisor/internal/bootstrap"
	"github.com/kirillkom/segment-advisor/internal/config"
	"github.com/kirillkom/segment-advisor/internal/observability/logging"
)

// The indexer loads the corpus, seeds every retrieval backend and announces
// the new revision. It exits when indexing is done.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("indexer", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "indexer"})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.IndexerMetricsPort,
		Handler:           app.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics_server_failed", "error", err)
		}
	}()

	started := time.Now()
	revision, err := app.Corpus.IndexCorpus(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if err != nil {
		slog.Error("indexing_failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
		app.Close()
		os.Exit(1)
	}
	slog.Info("indexing_completed", "revision", revision, "duration_ms", time.Since(started).Milliseconds())
}
