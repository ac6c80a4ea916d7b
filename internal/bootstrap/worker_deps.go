package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/adapter/out/fetch"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/adapter/out/mongodb"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/adapter/out/persistence"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/adapter/out/snapshot"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/agent/llm"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/pipeline"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/database"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/cache"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/httputil"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// registryLockWait bounds how long a save waits for another process.
const registryLockWait = 30 * time.Second

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client
	Mongo  *mongo.Client

	Cache      out.Cache
	Fetcher    out.PageFetcher
	Classifier out.TextClassifier
	Store      out.RegistryStore
	Locker     out.SaveLocker
	Runs       out.RunRepository
	Sink       out.SnapshotSink

	Pool *pipeline.Pool
	Log  zerolog.Logger
}

// NewDependencies connects the optional backing services and builds the
// adapters. Services without a configured URL are skipped: the pipeline runs
// with yaml registries, a memory cache and file snapshots alone.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config: cfg,
		Log:    logger.Default().Zerolog(),
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Redis: response cache, registry save lock, api rate limit
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		deps.Redis = client
		cleanups = append(cleanups, func() { _ = client.Close() })
		deps.Cache = cache.NewTieredCache(cache.NewRedisCache(client, "nightcrawler"), cache.DefaultTieredConfig())
		deps.Locker = persistence.NewRedisSaveLock(client, registryLockWait)
		logger.Info("Redis connected")
	} else {
		deps.Cache = cache.NewMemoryCache()
		logger.Info("REDIS_URL not set, using in-memory cache")
	}

	// Postgres: run history and, optionally, the registry
	if cfg.DatabaseURL != "" {
		sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres (sqlx): %w", err))
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { _ = sqlDB.Close() })
		metrics.RegisterPool("postgres", sqlDB.DB)

		runs := persistence.NewRunAdapter(sqlDB)
		if err := runs.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate run history: %w", err))
		}
		deps.Runs = runs
	}

	if err := deps.initFetcher(); err != nil {
		return fail(err)
	}
	deps.initClassifier()

	closeStore, err := deps.initRegistryStore(ctx)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		cleanups = append(cleanups, closeStore)
	}

	closeSink, err := deps.initSink(ctx)
	if err != nil {
		return fail(err)
	}
	if closeSink != nil {
		cleanups = append(cleanups, closeSink)
	}

	countries := cfg.APICountries
	if len(countries) == 0 {
		countries = []string{cfg.Country}
	}
	deps.Pool = pipeline.NewPool(countries, deps.BuildRunner)

	return deps, cleanup, nil
}

func (d *Dependencies) initFetcher() error {
	cfg := d.Config
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second

	var fetcher out.PageFetcher
	switch strings.ToLower(cfg.Fetcher) {
	case "zyte", "":
		zyte, err := fetch.NewZyteFetcher(fetch.ZyteConfig{
			APIURL:     cfg.ZyteAPIURL,
			Token:      cfg.ZyteAPIToken,
			Timeout:    timeout,
			MaxRetries: cfg.FetchMaxRetries,
			RetryDelay: cfg.FetchRetryDelay,
		}, d.Log)
		if err != nil {
			return err
		}
		fetcher = zyte
	case "http":
		fetcher = fetch.NewHTTPFetcher(fetch.HTTPConfig{
			Timeout:      timeout,
			MaxBodyBytes: cfg.FetchMaxBodySize,
			MaxRetries:   cfg.FetchMaxRetries,
			RetryDelay:   cfg.FetchRetryDelay,
			Limiter:      ratelimit.NewDomainLimiter(cfg.FetchPerDomainRP, 2),
		}, d.Log)
	default:
		return fmt.Errorf("unknown fetcher %q (expected zyte or http)", cfg.Fetcher)
	}

	d.Fetcher = fetch.NewCachedFetcher(fetcher, d.Cache, cfg.FetchCacheTTL, d.Log)
	return nil
}

func (d *Dependencies) initClassifier() {
	cfg := d.Config
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second

	client := llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Timeout:    timeout,
		MaxRetries: cfg.LLMMaxRetries,
		RetryDelay: cfg.LLMRetryDelay,
		HTTPClient: httputil.NewOptimizedClient(httputil.LLMClientConfig(timeout)),
	}, d.Log)
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY not set, shipping-policy classification will fail")
	}
	d.Classifier = llm.NewCachedClassifier(client, d.Cache, cfg.LLMCacheTTL, d.Log)
}

func (d *Dependencies) initRegistryStore(ctx context.Context) (func(), error) {
	cfg := d.Config
	switch strings.ToLower(cfg.RegistryBackend) {
	case "yaml", "":
		d.Store = persistence.NewYAMLRegistryStore(cfg.SettingsDir)
		return nil, nil

	case "sqlite":
		store, err := persistence.OpenSQLiteRegistryStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		metrics.RegisterPool("sqlite", store.DB())
		d.Store = store
		return func() { _ = store.Close() }, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("registry backend postgres needs DATABASE_URL")
		}
		pool, err := database.NewPostgres(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			return nil, fmt.Errorf("connect postgres (pgx): %w", err)
		}
		store := persistence.NewPostgresRegistryStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate registry: %w", err)
		}
		d.DB = pool
		d.Store = store
		return pool.Close, nil

	default:
		return nil, fmt.Errorf("unknown registry backend %q (expected yaml, sqlite or postgres)", cfg.RegistryBackend)
	}
}

// initSink always writes files; gcs and mongo are added on top when selected.
func (d *Dependencies) initSink(ctx context.Context) (func(), error) {
	cfg := d.Config
	sinks := snapshot.MultiSink{snapshot.NewFileSink(cfg.OutputDir)}
	var closeFn func()

	for _, name := range strings.Split(cfg.SnapshotSink, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "file":
		case "gcs":
			if cfg.GCSBucket == "" {
				return closeFn, fmt.Errorf("snapshot sink gcs needs GCS_BUCKET")
			}
			gcs, err := snapshot.NewGCSSink(ctx, cfg.GCSBucket, cfg.GCSPrefix, d.Log)
			if err != nil {
				return closeFn, fmt.Errorf("gcs sink: %w", err)
			}
			sinks = append(sinks, gcs)
		case "mongo":
			if cfg.MongoDBURL == "" {
				return closeFn, fmt.Errorf("snapshot sink mongo needs MONGODB_URL")
			}
			client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
			if err != nil {
				return closeFn, err
			}
			d.Mongo = client
			closeFn = func() { _ = client.Disconnect(context.Background()) }

			adapter := mongodb.NewSnapshotAdapter(client.Database(cfg.MongoDBName))
			if err := adapter.EnsureIndexes(ctx); err != nil {
				logger.WithError(err).Warn("failed to create snapshot indexes")
			}
			sinks = append(sinks, adapter)
		default:
			return closeFn, fmt.Errorf("unknown snapshot sink %q (expected file, gcs or mongo)", name)
		}
	}

	if len(sinks) == 1 {
		d.Sink = sinks[0]
	} else {
		d.Sink = sinks
	}
	return closeFn, nil
}

// BuildRunner loads the country settings and registry and assembles a runner.
func (d *Dependencies) BuildRunner(ctx context.Context, country string) (*pipeline.Runner, error) {
	settings, err := config.LoadCountrySettings(country, d.Config.SettingsFile)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(ctx, settings.Country, d.Store, registry.Options{
		KeysToSave: settings.KeysToSave,
		Locker:     d.Locker,
		LockTTL:    d.Config.RegistryLockTTL,
		Logger:     d.Log,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.NewRunner(pipeline.RunnerDeps{
		Settings:   settings,
		Registry:   reg,
		Fetcher:    d.Fetcher,
		Classifier: d.Classifier,
		Sink:       d.Sink,
		Runs:       d.Runs,
		User:       d.Config.User,
		Logger:     d.Log,
	})
}
