package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Scraper    ScraperConfig
	Summary    SummaryConfig
	Auth       AuthConfig
	Twitter    TwitterConfig
	OpenRouter ProviderConfig
	MiniMax    ProviderConfig
	OpenSource ProviderConfig
	Anthropic  ProviderConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the Postgres connection string and pool tuning.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnectTimeout     time.Duration
}

// ScraperConfig holds the scheduler/scrape-job defaults.
type ScraperConfig struct {
	Enabled              bool
	IntervalSeconds      int
	DefaultLimit         int
	MaxConcurrentScrapes int
}

// SummaryConfig holds auto-summarisation and LLM fan-out defaults.
type SummaryConfig struct {
	AutoEnabled           bool
	AutoBatchSize         int
	MaxConcurrentRequests int
}

// AuthConfig holds JWT and admin bootstrap secrets.
type AuthConfig struct {
	JWTSecret    string
	JWTExpireHrs int
	AdminAPIKey  string
}

// TwitterConfig holds the upstream tweet-provider credentials.
type TwitterConfig struct {
	APIKey  string
	BaseURL string
}

// ProviderConfig holds per-LLM-provider credentials and endpoint overrides.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// CORSConfig holds allowed CORS origins for the HTTP API.
type CORSConfig struct {
	AllowedOrigins []string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultLogFormat       = "json"

	defaultScraperInterval      = 900 // 15 minutes
	defaultScraperLimit         = 100
	defaultMaxConcurrentScrapes = 3

	defaultAutoBatchSize         = 50
	defaultMaxConcurrentRequests = 5

	defaultJWTExpireHours = 24

	defaultDBMaxConnections     = 100
	defaultDBMaxIdleConnections = 10
	defaultDBConnMaxLifetime    = 5 * time.Minute
	defaultDBConnectTimeout     = 10 * time.Second
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided. A malformed or out-of-range numeric, duration,
// log level or log format value makes Load return an error; a malformed
// boolean falls back to its default.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     defaultDBMaxConnections,
			MaxIdleConnections: defaultDBMaxIdleConnections,
			ConnMaxLifetime:    defaultDBConnMaxLifetime,
			ConnectTimeout:     defaultDBConnectTimeout,
		},
		Scraper: ScraperConfig{
			Enabled:              getEnvBool("SCRAPER_ENABLED", true),
			IntervalSeconds:      defaultScraperInterval,
			DefaultLimit:         defaultScraperLimit,
			MaxConcurrentScrapes: defaultMaxConcurrentScrapes,
		},
		Summary: SummaryConfig{
			AutoEnabled:           getEnvBool("AUTO_SUMMARIZATION_ENABLED", true),
			AutoBatchSize:         defaultAutoBatchSize,
			MaxConcurrentRequests: defaultMaxConcurrentRequests,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET_KEY", "change-this-secret"),
			JWTExpireHrs: defaultJWTExpireHours,
			AdminAPIKey:  os.Getenv("ADMIN_API_KEY"),
		},
		Twitter: TwitterConfig{
			APIKey:  os.Getenv("TWITTER_API_KEY"),
			BaseURL: getEnv("TWITTER_BASE_URL", "https://api.twitterapi.io"),
		},
		OpenRouter: ProviderConfig{
			APIKey:  os.Getenv("OPENROUTER_API_KEY"),
			BaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:   getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		},
		MiniMax: ProviderConfig{
			APIKey:  os.Getenv("MINIMAX_API_KEY"),
			BaseURL: getEnv("MINIMAX_BASE_URL", "https://api.minimax.chat/v1"),
			Model:   getEnv("MINIMAX_MODEL", "abab6.5-chat"),
		},
		OpenSource: ProviderConfig{
			APIKey:  os.Getenv("OPENSOURCE_API_KEY"),
			BaseURL: getEnv("OPENSOURCE_BASE_URL", "http://localhost:8000/v1"),
			Model:   getEnv("OPENSOURCE_MODEL", "llama-3.1-8b-instruct"),
		},
		Anthropic: ProviderConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("SCRAPER_INTERVAL"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 300 || seconds > 604800 {
			return Config{}, fmt.Errorf("invalid SCRAPER_INTERVAL: must be an integer in [300, 604800]")
		}
		cfg.Scraper.IntervalSeconds = seconds
	}

	if v := os.Getenv("SCRAPER_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			return Config{}, fmt.Errorf("invalid SCRAPER_LIMIT: must be an integer in [1, 1000]")
		}
		cfg.Scraper.DefaultLimit = limit
	}

	if v := os.Getenv("AUTO_SUMMARIZATION_BATCH_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return Config{}, fmt.Errorf("invalid AUTO_SUMMARIZATION_BATCH_SIZE: must be a positive integer")
		}
		cfg.Summary.AutoBatchSize = size
	}

	if v := os.Getenv("JWT_EXPIRE_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid JWT_EXPIRE_HOURS: must be a positive integer")
		}
		cfg.Auth.JWTExpireHrs = hours
	}

	if v := os.Getenv("DB_MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNECTIONS: must be a positive integer")
		}
		cfg.Database.MaxConnections = n
	}

	if v := os.Getenv("DB_MAX_IDLE_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNECTIONS: must be a non-negative integer")
		}
		cfg.Database.MaxIdleConnections = n
	}

	if v := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME_SECONDS: %w", err)
		}
		cfg.Database.ConnMaxLifetime = d
	}

	if v := os.Getenv("DB_CONNECT_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_CONNECT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Database.ConnectTimeout = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
