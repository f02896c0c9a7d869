// Package httpapi is the fiber surface of the api-service: link management,
// analytics, accounts and the public redirect route.
package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/MagnunAVF/shortlink/internal"
	"github.com/MagnunAVF/shortlink/internal/analytics"
	"github.com/MagnunAVF/shortlink/internal/auth"
	"github.com/MagnunAVF/shortlink/internal/links"
	"github.com/MagnunAVF/shortlink/internal/logger"
	"github.com/MagnunAVF/shortlink/internal/redirect"
)

type LinkService interface {
	Create(ctx context.Context, in links.CreateInput) (*internal.Link, error)
	Update(ctx context.Context, id int64, ownerID string, in links.UpdateInput) (*internal.Link, error)
	Delete(ctx context.Context, id int64, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]internal.LinkClicks, error)
}

type Resolver interface {
	Resolve(ctx context.Context, v redirect.Visit) (*internal.Link, error)
}

type Reports interface {
	Summary(ctx context.Context, ownerID string) (*analytics.Summary, error)
	ClicksOverTime(ctx context.Context, ownerID string, days int) ([]analytics.DailyClickBucket, error)
	DailyStats(ctx context.Context, ownerID string) (*analytics.DailyStats, error)
	DeviceBreakdown(ctx context.Context, ownerID string) (*analytics.DeviceBreakdown, error)
	LinkPerformance(ctx context.Context, ownerID string, days int) (*analytics.LinkPerformance, error)
	LinkDetail(ctx context.Context, ownerID string, linkID int64) (*analytics.LinkDetail, error)
}

type Accounts interface {
	Register(ctx context.Context, in auth.Credentials) (*internal.User, error)
	Login(ctx context.Context, in auth.Credentials) (string, error)
}

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

type Config struct {
	AppDomain   string
	CORSOrigins string
	// ProxyHeader, when set, is trusted for the client IP recorded on clicks.
	ProxyHeader string
	// ReadyTimeout bounds all readiness checks together.
	ReadyTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Deps struct {
	Links    LinkService
	Resolver Resolver
	Reports  Reports
	Accounts Accounts
	// Authenticate must set the owner id read by auth.OwnerID.
	Authenticate fiber.Handler
	Checks       map[string]Check
}

type server struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *fiber.App {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.AppDomain = strings.TrimRight(cfg.AppDomain, "/")

	app := fiber.New(fiber.Config{
		AppName:               "shortlink api-service",
		ErrorHandler:          errorHandler,
		ProxyHeader:           cfg.ProxyHeader,
		DisableStartupMessage: true,
	})
	app.Use(logger.RequestIDMiddleware())
	app.Use(logger.FiberMiddleware())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: orDefault(cfg.CORSOrigins, "*")}))

	s := &server{cfg: cfg, deps: deps}
	s.routes(app)
	return app
}

func (s *server) routes(app *fiber.App) {
	app.Get("/healthz", s.healthz)
	app.Get("/readyz", s.readyz)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", s.register)
	authGroup.Post("/login", s.login)

	// Owner routes take the middleware one by one; a group prefix would also
	// catch short codes such as "linksale".
	owner := s.deps.Authenticate
	app.Post("/shorten", owner, s.shorten)

	app.Get("/links", owner, s.listLinks)
	app.Get("/links/:id/stats", owner, s.linkStats)
	app.Patch("/links/:id", owner, s.updateLink)
	app.Delete("/links/:id", owner, s.deleteLink)

	app.Get("/analytics/summary", owner, s.summary)
	app.Get("/analytics/clicks", owner, s.clicksOverTime)
	app.Get("/analytics/daily", owner, s.dailyStats)
	app.Get("/analytics/devices", owner, s.deviceBreakdown)
	app.Get("/analytics/performance", owner, s.linkPerformance)

	// Registered last so fixed routes win over short codes.
	app.Get("/:code", s.redirect)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
