package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// currentUser names the operator in run directories.
func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		return "nightcrawler"
	}
	return hostname
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Run
	Country      string
	User         string
	SettingsDir  string
	SettingsFile string
	OutputDir    string

	// Registry
	RegistryBackend string // yaml | sqlite | postgres
	SQLitePath      string
	RegistryLockTTL time.Duration

	// Database
	DatabaseURL   string
	DBMaxConns    int
	MongoDBURL    string
	MongoDBName   string
	RedisURL      string
	RedisPoolSize int

	// Snapshots
	SnapshotSink string // file | gcs | mongo
	GCSBucket    string
	GCSPrefix    string

	// Fetch
	Fetcher          string // zyte | http
	ZyteAPIURL       string
	ZyteAPIToken     string
	FetchTimeoutSec  int
	FetchMaxRetries  int
	FetchRetryDelay  time.Duration
	FetchCacheTTL    time.Duration
	FetchMaxBodySize int64
	FetchPerDomainRP float64

	// LLM
	LLMAPIKey     string
	LLMBaseURL    string
	LLMTimeoutSec int
	LLMMaxRetries int
	LLMRetryDelay time.Duration
	LLMCacheTTL   time.Duration

	// JWT
	JWTSecret string

	// API
	APIRateLimit int // requests per minute per subject
	APIBodyLimit int
	APICountries []string

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		// Run
		Country:      getEnv("COUNTRY", "CH"),
		User:         getEnv("NIGHTCRAWLER_USER", currentUser()),
		SettingsDir:  getEnv("SETTINGS_DIR", "settings/country_filtering"),
		SettingsFile: getEnv("SETTINGS_FILE", ""),
		OutputDir:    getEnv("OUTPUT_DIR", "data/output"),

		// Registry
		RegistryBackend: getEnv("REGISTRY_BACKEND", "yaml"),
		SQLitePath:      getEnv("SQLITE_PATH", "data/registry.db"),
		RegistryLockTTL: time.Duration(getEnvInt("REGISTRY_LOCK_TTL_SEC", 60)) * time.Second,

		// Database
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 10),
		MongoDBURL:    getEnv("MONGODB_URL", ""),
		MongoDBName:   getEnv("MONGODB_DATABASE", "nightcrawler"),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 60),

		// Snapshots
		SnapshotSink: getEnv("SNAPSHOT_SINK", "file"),
		GCSBucket:    getEnv("GCS_BUCKET", ""),
		GCSPrefix:    getEnv("GCS_PREFIX", "nightcrawler"),

		// Fetch
		Fetcher:          getEnv("FETCHER", "zyte"),
		ZyteAPIURL:       getEnv("ZYTE_API_URL", "https://api.zyte.com/v1/extract"),
		ZyteAPIToken:     getEnv("ZYTE_API_TOKEN", ""),
		FetchTimeoutSec:  getEnvInt("FETCH_TIMEOUT_SEC", 60),
		FetchMaxRetries:  getEnvInt("FETCH_MAX_RETRIES", 3),
		FetchRetryDelay:  time.Duration(getEnvInt("FETCH_RETRY_DELAY_SEC", 2)) * time.Second,
		FetchCacheTTL:    time.Duration(getEnvInt("FETCH_CACHE_TTL_HOUR", 7*24-6)) * time.Hour,
		FetchMaxBodySize: int64(getEnvInt("FETCH_MAX_BODY_BYTES", 10<<20)),
		FetchPerDomainRP: getEnvFloat("FETCH_PER_DOMAIN_RPS", 1),

		// LLM
		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMBaseURL:    getEnv("LLM_BASE_URL", "https://api.mistral.ai/v1"),
		LLMTimeoutSec: getEnvInt("LLM_TIMEOUT_SEC", 60),
		LLMMaxRetries: getEnvInt("LLM_MAX_RETRIES", 3),
		LLMRetryDelay: time.Duration(getEnvInt("LLM_RETRY_DELAY_SEC", 2)) * time.Second,
		LLMCacheTTL:   time.Duration(getEnvInt("LLM_CACHE_TTL_HOUR", 24)) * time.Hour,

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// API
		APIRateLimit: getEnvInt("API_RATE_LIMIT", 120),
		APIBodyLimit: getEnvInt("API_BODY_LIMIT", 4<<20),
		APICountries: getEnvSlice("API_COUNTRIES", []string{"CH", "AT"}),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
