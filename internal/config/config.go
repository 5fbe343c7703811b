package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string
	DBDSN        string
	JWTSecret    string

	LogLevel string
	LogFile  string

	Redis         RedisConfig
	Cache         CacheConfig
	Collaborators CollaboratorConfig
	Worker        WorkerConfig

	// CancelRequiresRefund decides whether a failed refund blocks a cancellation.
	CancelRequiresRefund bool
}

// RedisConfig holds Redis connection settings shared by the cache and the task queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig holds the read-through cache TTL tiers.
type CacheConfig struct {
	DefaultTTL time.Duration
	ShortTTL   time.Duration
}

// CollaboratorConfig holds base URLs and call limits for the external services.
type CollaboratorConfig struct {
	IdentityURL     string
	InventoryURL    string
	PricingURL      string
	OrganizationURL string
	Token           string
	Timeout         time.Duration
	RequestsPerSec  int
}

// WorkerConfig holds settings for the background worker process.
type WorkerConfig struct {
	Concurrency   int
	SweepSchedule string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	// JWT secret is required to verify caller tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFile = getEnv("LOG_FILE", "")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.Cache.DefaultTTL, err = getEnvAsDuration("CACHE_DEFAULT_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid CACHE_DEFAULT_TTL: %w", err)
	}
	if cfg.Cache.ShortTTL, err = getEnvAsDuration("CACHE_SHORT_TTL", time.Hour); err != nil {
		return nil, fmt.Errorf("invalid CACHE_SHORT_TTL: %w", err)
	}

	cfg.Collaborators.IdentityURL = getEnv("IDENTITY_URL", "http://localhost:8091")
	cfg.Collaborators.InventoryURL = getEnv("INVENTORY_URL", "http://localhost:8092")
	cfg.Collaborators.PricingURL = getEnv("PRICING_URL", "http://localhost:8093")
	cfg.Collaborators.OrganizationURL = getEnv("ORGANIZATION_URL", "http://localhost:8094")
	cfg.Collaborators.Token = getEnv("COLLABORATOR_TOKEN", "")
	if cfg.Collaborators.Timeout, err = getEnvAsDuration("COLLABORATOR_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid COLLABORATOR_TIMEOUT: %w", err)
	}
	if cfg.Collaborators.RequestsPerSec, err = getEnvAsInt("COLLABORATOR_RPS", 50); err != nil {
		return nil, fmt.Errorf("invalid COLLABORATOR_RPS: %w", err)
	}

	if cfg.Worker.Concurrency, err = getEnvAsInt("WORKER_CONCURRENCY", 10); err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}
	cfg.Worker.SweepSchedule = getEnv("SWEEP_SCHEDULE", "@daily")

	if cfg.CancelRequiresRefund, err = getEnvAsBool("CANCEL_REQUIRES_REFUND", true); err != nil {
		return nil, fmt.Errorf("invalid CANCEL_REQUIRES_REFUND: %w", err)
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses values such as "15m" or "24h".
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid boolean: %w", key, valStr, err)
	}
	return val, nil
}
