package main

// Hands out snowflake ids to api-service instances so that link ids stay
// unique without a database sequence.

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/MagnunAVF/shortlink/internal/config"
	"github.com/MagnunAVF/shortlink/internal/idgen"
	applog "github.com/MagnunAVF/shortlink/internal/logger"
)

func main() {
	cfg, err := config.Load("id-service")
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	applog.Init(cfg.Logging)

	gen, err := idgen.NewGenerator(cfg.NodeID)
	if err != nil {
		slog.Error("Failed to create ID generator", "node_id", cfg.NodeID, "err", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(applog.RequestIDMiddleware())
	app.Use(applog.FiberMiddleware())
	app.Get("/new-id", func(c *fiber.Ctx) error {
		id, err := gen.NextID(c.UserContext())
		if err != nil {
			applog.FromContext(c.UserContext()).Error("Failed to generate ID", "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate ID"})
		}
		return c.JSON(fiber.Map{"id": id})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting ID Service", "addr", cfg.IDServiceAddr, "node_id", cfg.NodeID)
		return app.Listen(cfg.IDServiceAddr)
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down ID Service")
		return app.ShutdownWithTimeout(cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		slog.Error("ID Service failed", "err", err)
		os.Exit(1)
	}
}
