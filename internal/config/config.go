package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	GRPC     GRPCConfig
	Feed     FeedConfig
	Push     PushConfig
	Schedule ScheduleConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type FeedConfig struct {
	URL        string
	Area       string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type PushConfig struct {
	CredentialsFile string // empty disables delivery (log only)
	Concurrency     int
}

type ScheduleConfig struct {
	IngestInterval time.Duration
	SweepInterval  time.Duration
	RetentionDays  int
}

type DatabaseConfig struct {
	Driver string // sqlite | postgres
	Path   string
	URL    string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 5),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Feed: FeedConfig{
			URL:        getEnv("FEED_URL", "https://api.weather.gov/alerts/active"),
			Area:       getEnv("FEED_AREA", "NV"),
			UserAgent:  getEnv("FEED_USER_AGENT", "Weather Alert App (contact@yourapp.com)"),
			Timeout:    getEnvDuration("FEED_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("FEED_MAX_RETRIES", 3),
			RetryDelay: getEnvDuration("FEED_RETRY_DELAY", 60*time.Second),
		},
		Push: PushConfig{
			CredentialsFile: getEnv("PUSH_CREDENTIALS_FILE", ""),
			Concurrency:     getEnvInt("PUSH_CONCURRENCY", 8),
		},
		Schedule: ScheduleConfig{
			IngestInterval: getEnvDuration("INGEST_INTERVAL", 30*time.Minute),
			SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 24*time.Hour),
			RetentionDays:  getEnvInt("RETENTION_DAYS", 7),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			Path:   getEnv("DB_PATH", "./data/weather-alerts.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.GRPC.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Feed.URL == "" {
		return fmt.Errorf("feed url is required")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed timeout must be positive")
	}
	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("feed max retries cannot be negative")
	}

	if c.Push.Concurrency < 1 {
		return fmt.Errorf("push concurrency must be at least 1")
	}

	if c.Schedule.IngestInterval < time.Minute {
		return fmt.Errorf("ingest interval must be at least 1 minute")
	}
	if c.Schedule.SweepInterval < time.Minute {
		return fmt.Errorf("sweep interval must be at least 1 minute")
	}
	if c.Schedule.RetentionDays < 1 {
		return fmt.Errorf("retention must be at least 1 day")
	}

	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
