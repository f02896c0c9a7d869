package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/MagnunAVF/shortlink/internal/analytics"
	"github.com/MagnunAVF/shortlink/internal/auth"
	"github.com/MagnunAVF/shortlink/internal/cache"
	"github.com/MagnunAVF/shortlink/internal/config"
	"github.com/MagnunAVF/shortlink/internal/httpapi"
	"github.com/MagnunAVF/shortlink/internal/idgen"
	"github.com/MagnunAVF/shortlink/internal/links"
	applog "github.com/MagnunAVF/shortlink/internal/logger"
	"github.com/MagnunAVF/shortlink/internal/queue"
	"github.com/MagnunAVF/shortlink/internal/redirect"
	"github.com/MagnunAVF/shortlink/internal/store"
)

func main() {
	cfg, err := config.Load("api-service")
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	applog.Init(cfg.Logging)
	if err := cfg.ValidateAPI(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(store.Options{
		DSN:           cfg.DBURL,
		LogLevel:      cfg.GormLogLevel,
		SlowThreshold: cfg.GormSlowThreshold,
	})
	if err != nil {
		slog.Error("Unable to connect to database", "err", err)
		os.Exit(1)
	}
	slog.Info("Running GORM Auto-Migration...")
	if err := store.Migrate(db); err != nil {
		slog.Error("Failed to auto-migrate database", "err", err)
		os.Exit(1)
	}
	slog.Info("Migration complete.")

	checks := map[string]httpapi.Check{
		"database": func(ctx context.Context) error { return store.Ping(ctx, db) },
	}

	linkStore := store.NewLinks(db)
	var dirOpts []links.Option
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Redirects fall through to Postgres while Redis is down.
			slog.Warn("Redis not reachable at startup", "addr", cfg.Redis.Addr, "err", err)
		}
		linkCache := cache.NewLinks(rdb, linkStore, cfg.Redis.LinkTTL)
		dirOpts = append(dirOpts, links.WithCache(linkCache))
		checks["redis"] = linkCache.Ping
	} else {
		slog.Warn("REDIS_ADDR not set, link cache disabled")
	}

	ids, err := idSource(cfg)
	if err != nil {
		slog.Error("Failed to create ID source", "err", err)
		os.Exit(1)
	}
	directory := links.NewDirectory(linkStore, ids, dirOpts...)

	recorder, closeRecorder, err := clickRecorder(cfg, db)
	if err != nil {
		slog.Error("Failed to set up click recording", "sink", cfg.ClickSink, "err", err)
		os.Exit(1)
	}
	defer closeRecorder()

	resolver := redirect.NewResolver(directory, recorder,
		redirect.WithLookupTimeout(cfg.RedirectLookupTimeout),
		redirect.WithRecordTimeout(cfg.RecordTimeout),
	)
	accounts := auth.NewService(store.NewUsers(db), cfg.JWTSecret, auth.WithTokenTTL(cfg.TokenTTL))

	app := httpapi.New(httpapi.Config{
		AppDomain:   cfg.AppDomain,
		CORSOrigins: cfg.CORSOrigins,
		ProxyHeader: cfg.ProxyHeader,
	}, httpapi.Deps{
		Links:        directory,
		Resolver:     resolver,
		Reports:      analytics.NewAggregator(store.NewAnalytics(db), analytics.WithTimeout(cfg.AnalyticsTimeout)),
		Accounts:     accounts,
		Authenticate: accounts.Middleware(),
		Checks:       checks,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting API Service", "addr", cfg.HTTPAddr, "click_sink", cfg.ClickSink)
		return app.Listen(cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down API Service")
		err := app.ShutdownWithTimeout(cfg.ShutdownTimeout)
		// Let clicks already handed to the recorder finish before the
		// broker connection and database pool close.
		waitWithTimeout(resolver.Wait, cfg.ShutdownTimeout)
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("API Service failed", "err", err)
		os.Exit(1)
	}
}

func idSource(cfg *config.Config) (idgen.Source, error) {
	if cfg.IDServiceURL != "" {
		slog.Info("Using remote ID service", "url", cfg.IDServiceURL)
		return idgen.NewClient(cfg.IDServiceURL, 2*time.Second), nil
	}
	slog.Info("Using in-process ID generator", "node_id", cfg.NodeID)
	gen, err := idgen.NewGenerator(cfg.NodeID)
	if err != nil {
		return nil, err
	}
	return gen, nil
}

func clickRecorder(cfg *config.Config, db *gorm.DB) (redirect.Recorder, func(), error) {
	if cfg.ClickSink == config.SinkDirect {
		return store.NewClicks(db), func() {}, nil
	}
	conn, ch, err := queue.Dial(cfg.RabbitMQURL, cfg.ClickQueue)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ch.Close()
		conn.Close()
	}
	return queue.NewPublisher(ch, cfg.ClickQueue), closeFn, nil
}

func waitWithTimeout(wait func(), timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("Timed out waiting for in-flight click recordings")
	}
}
