package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/google/uuid"

	"prices/internal/config"
	"prices/internal/http/handlers"
	applog "prices/internal/log"
	"prices/internal/metrics"
	"prices/internal/repos"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal(err)
	}
	sink := applog.Setup(cfg.LogFile, cfg.LogMaxSizeMB)
	defer sink.Close()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DBSeed {
		if err := repos.SeedIfEmpty(ctx, db, loc); err != nil {
			log.Fatal(err)
		}
	}

	engine := html.New("./web/templates", ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: handlers.ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(metrics.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.limit.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	// ---------- App handlers ----------
	deps, err := handlers.NewDeps(db, cfg)
	if err != nil {
		log.Fatal(err)
	}

	api := app.Group("/api")
	api.Get("/prices", deps.PriceHandler.Lookup)

	app.Get("/prices", deps.PriceHandler.Page)

	// Health, metrics & 404
	app.Get("/healthz", deps.Health.Healthz)
	app.Get("/metrics", metrics.Handler())
	app.Use(handlers.NotFound)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			applog.Error(nil, "server.shutdown", err, nil)
		}
	}()

	applog.Audit(nil, "server.start", map[string]any{"port": cfg.Port, "driver": cfg.DBDriver})
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
