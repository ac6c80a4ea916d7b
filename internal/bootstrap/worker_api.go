package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/adapter/in/http"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/middleware"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// runTimeout bounds a synchronous POST /runs.
const runTimeout = 15 * time.Minute

func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	if cfg.JWTSecret == "" {
		return nil, nil, apperr.ConfigError("JWT_SECRET is required in api mode")
	}

	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json: faster than encoding/json for large run envelopes
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          cfg.APIBodyLimit,
		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())              // 1. Panic recovery
	app.Use(middleware.RequestID())            // 2. Request ID
	app.Use(middleware.SecurityHeaders())      // 3. Security headers
	app.Use(middleware.PreventPathTraversal()) // 4. Path traversal protection
	app.Use(middleware.RequestLogger())        // 5. Request logging

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// AllowCredentials:true requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	http.NewHealthHandler(healthChecks(deps)).Register(app)

	if cfg.IsDevelopment() {
		RegisterDevRoutes(app, cfg)
		logger.Warn("Development token route enabled at /dev/token")
	}

	blacklist := middleware.NewTokenBlacklist(deps.Redis)
	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(middleware.AuthConfig{
		Secret:    cfg.JWTSecret,
		Blacklist: blacklist,
	}))
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.APIRateLimit, time.Minute),
		Limit:   cfg.APIRateLimit,
		Prefix:  "api",
	}))

	http.NewAuthHandler(blacklist).Register(api)
	http.NewRegistryHandler(deps.Pool).Register(api)
	http.NewMetricsHandler(metrics.GlobalRegistry(), metrics.GlobalPoolMonitor()).Register(api)

	// runs fetch pages and call the LLM inline; give them their own deadline
	pipelineHandler := http.NewPipelineHandler(deps.Pool, deps.Runs, deps.Log)
	api.Post("/filter", pipelineHandler.Filter)
	api.Post("/runs", middleware.Timeout(runTimeout), pipelineHandler.StartRun)
	api.Get("/runs", pipelineHandler.ListRuns)
	api.Get("/runs/:uuid", pipelineHandler.GetRun)

	// save what the api runs learned when the server stops
	shutdown := func() {
		saveRegistries(context.Background(), deps)
		cleanup()
	}

	logger.Info("API server initialized for countries %v", deps.Pool.Countries())
	return app, shutdown, nil
}

func healthChecks(deps *Dependencies) map[string]http.HealthChecker {
	checks := map[string]http.HealthChecker{
		"postgres": nil,
		"redis":    nil,
		"mongodb":  nil,
	}
	if deps.DB != nil {
		checks["postgres"] = http.PingFunc(deps.DB.Ping)
	} else if deps.SQLDB != nil {
		checks["postgres"] = http.PingFunc(deps.SQLDB.PingContext)
	}
	if deps.Redis != nil {
		checks["redis"] = http.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}
	if deps.Mongo != nil {
		checks["mongodb"] = http.PingFunc(func(ctx context.Context) error {
			return deps.Mongo.Ping(ctx, nil)
		})
	}
	return checks
}
