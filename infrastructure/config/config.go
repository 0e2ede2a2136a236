package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	ServerPort string
	ServerHost string

	Environment string
	LogLevel    string
	LogFormat   string

	CanvasBaseURL    string
	CanvasToken      string
	DiscourseBaseURL string
	DiscourseToken   string
	ClientTimeout    time.Duration

	SyncWorkers        int
	SyncMaxAttempts    int
	SyncRetryBaseDelay time.Duration

	MonitorAuthEnabled bool
	MonitorJWTSecret   string
}

var (
	ErrMissingDatabaseURL      = errors.New("DATABASE_URL is required")
	ErrMissingCanvasBaseURL    = errors.New("CANVAS_BASE_URL is required")
	ErrMissingDiscourseBaseURL = errors.New("DISCOURSE_BASE_URL is required")
	ErrMissingJWTSecret        = errors.New("MONITOR_JWT_SECRET is required when monitor auth is enabled")
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),

		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost: getEnvOrDefault("SERVER_HOST", "0.0.0.0"),

		Environment: getEnvOrDefault("ENV", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "json"),

		CanvasBaseURL:    os.Getenv("CANVAS_BASE_URL"),
		CanvasToken:      os.Getenv("CANVAS_API_TOKEN"),
		DiscourseBaseURL: os.Getenv("DISCOURSE_BASE_URL"),
		DiscourseToken:   os.Getenv("DISCOURSE_API_TOKEN"),
		ClientTimeout:    getEnvOrDefaultDuration("CLIENT_TIMEOUT", 15*time.Second),

		SyncWorkers:        getEnvOrDefaultInt("SYNC_WORKERS", 4),
		SyncMaxAttempts:    getEnvOrDefaultInt("SYNC_MAX_ATTEMPTS", 5),
		SyncRetryBaseDelay: getEnvOrDefaultDuration("SYNC_RETRY_BASE_DELAY", 200*time.Millisecond),

		MonitorAuthEnabled: getEnvOrDefaultBool("MONITOR_AUTH_ENABLED", false),
		MonitorJWTSecret:   os.Getenv("MONITOR_JWT_SECRET"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.CanvasBaseURL == "" {
		return ErrMissingCanvasBaseURL
	}
	if c.DiscourseBaseURL == "" {
		return ErrMissingDiscourseBaseURL
	}
	if c.MonitorAuthEnabled && c.MonitorJWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvOrDefaultInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvOrDefaultBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
