package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/dgallion1/docshift/internal/api"
	"github.com/dgallion1/docshift/internal/config"
	"github.com/dgallion1/docshift/internal/convert"
	"github.com/dgallion1/docshift/internal/jobs"
	"github.com/dgallion1/docshift/internal/metrics"
	"github.com/dgallion1/docshift/internal/publish"
	"github.com/dgallion1/docshift/internal/stats"
	"github.com/dgallion1/docshift/internal/transforms"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Match GOMAXPROCS to the container CPU quota.
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("maxprocs", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := metrics.NewRecorder()
	conv := &convert.Converter{
		Registry:    transforms.Default(),
		Stats:       stats.NewConversions(cfg.StatsWindow),
		Metrics:     rec,
		Log:         log,
		PDFFallback: cfg.PDFFallbackPdftotext,
	}

	// Initialize the publish client only when a target is configured.
	var pub jobs.Publisher
	var pc *publish.Client
	if cfg.Publishing() {
		pc = publish.NewClient(cfg.PublishURL, cfg.PublishAPIKey)
		pub = pc
		log.Info("publishing enabled", "url", cfg.PublishURL, "prefix", cfg.PublishPrefix)
	}

	queue := jobs.NewQueue(jobs.Options{
		Workers:       cfg.WorkerCount,
		MaxQueue:      cfg.MaxQueueSize,
		TTL:           cfg.JobTTL,
		PublishPrefix: cfg.PublishPrefix,
		Metrics:       rec,
	}, conv, pub, log)
	rec.RegisterQueueDepth(queue.Depth)
	queue.Start(ctx)

	srv := api.NewServer(conv, queue, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		queue.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if pc != nil {
			pc.Close()
		}
	}()

	log.Info("starting docshift", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
