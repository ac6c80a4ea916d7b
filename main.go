package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/internal/bootstrap"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "run", "Run mode: run, api")
	input := flag.String("input", "", "JSON file with a list of urls or a stored pipeline result")
	keyword := flag.String("keyword", "", "Search keyword the urls were found for")
	country := flag.String("country", "", "Country code (CH, AT); defaults to COUNTRY")
	steps := flag.String("steps", "", "Comma separated steps, e.g. country,delivery")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	level := logger.LevelInfo
	if cfg.LogLevel != "" {
		level = logger.ParseLevel(cfg.LogLevel)
	} else if cfg.IsDevelopment() {
		level = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   level,
		Service: "nightcrawler",
		Console: cfg.IsDevelopment(),
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	switch *mode {
	case "run":
		runBatch(cfg, bootstrap.BatchOptions{
			Input:   *input,
			Keyword: *keyword,
			Country: *country,
			Steps:   splitSteps(*steps),
		})
	case "api":
		runAPI(cfg)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func splitSteps(s string) []string {
	var out []string
	for _, step := range strings.Split(s, ",") {
		if step = strings.TrimSpace(step); step != "" {
			out = append(out, step)
		}
	}
	return out
}

func runBatch(cfg *config.Config, opts bootstrap.BatchOptions) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batch, cleanup, err := bootstrap.NewBatch(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline: %v", err)
	}

	_, _, runErr := batch.Run(ctx, opts)

	// the run context may be cancelled already; flush with a fresh one
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	batch.Close(flushCtx)
	cancel()
	cleanup()

	if runErr != nil {
		logger.WithError(runErr).Error("Pipeline run failed")
		os.Exit(1)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		} else {
			logger.Info("API server shut down gracefully")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
