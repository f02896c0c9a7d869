package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/MagnunAVF/shortlink/internal/config"
	applog "github.com/MagnunAVF/shortlink/internal/logger"
	"github.com/MagnunAVF/shortlink/internal/queue"
	"github.com/MagnunAVF/shortlink/internal/store"
)

func main() {
	cfg, err := config.Load("analytics-worker")
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	applog.Init(cfg.Logging)
	if err := cfg.ValidateWorker(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	db, err := store.Open(store.Options{
		DSN:           cfg.DBURL,
		LogLevel:      cfg.GormLogLevel,
		SlowThreshold: cfg.GormSlowThreshold,
	})
	if err != nil {
		slog.Error("Unable to connect to primary database", "err", err)
		os.Exit(1)
	}
	if err := store.Migrate(db); err != nil {
		slog.Error("Failed to auto-migrate database", "err", err)
		os.Exit(1)
	}

	conn, ch, err := queue.Dial(cfg.RabbitMQURL, cfg.ClickQueue)
	if err != nil {
		slog.Error("Unable to set up RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer conn.Close()
	defer ch.Close()

	// Prefetch one full batch so the size trigger can fire.
	msgs, err := queue.Consume(ch, cfg.ClickQueue, "analytics-worker", cfg.ClickBatchSize)
	if err != nil {
		slog.Error("Unable to consume click queue", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = applog.IntoContext(ctx, applog.With("queue", cfg.ClickQueue))

	slog.Info("Analytics Worker started. Waiting for click events...",
		"batch_size", cfg.ClickBatchSize, "flush_interval", cfg.ClickFlushInterval)

	batcher := queue.NewBatcher(store.NewClicks(db), cfg.ClickBatchSize, cfg.ClickFlushInterval)
	err = batcher.Run(ctx, msgs)
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("Analytics Worker stopped")
	case errors.Is(err, queue.ErrDeliveriesClosed):
		// The broker went away; exit non-zero so the supervisor restarts us.
		slog.Error("Click queue closed", "err", err)
		os.Exit(1)
	case err != nil:
		slog.Error("Analytics Worker failed", "err", err)
		os.Exit(1)
	}
}
