package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// LLM providers.
const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string
	ModelName       string
	GroqAPIKey      string
	AnthropicAPIKey string
	LLMBaseURL      string // overrides the provider's default endpoint

	StorageBackend  string
	RedisURL        string
	SessionTTL      time.Duration
	SessionCapacity int
	HistoryLimit    int

	ContentRating string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; variables already set
// in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderGroq)),
		ModelName:       getEnv("MODEL_NAME", "llama-3.3-70b-versatile"),
		GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		LLMBaseURL:      os.Getenv("LLM_BASE_URL"),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		ContentRating:   os.Getenv("CONTENT_RATING"),
	}

	var err error
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionCapacity, err = getEnvInt("SESSION_CAPACITY", 1000); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getEnvInt("HISTORY_LIMIT", 20); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a fixed set of choices or bounds.
// API keys are checked by the caller that builds the provider.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: must be %q or %q", c.StorageBackend, StorageMemory, StorageRedis)
	}
	switch c.LLMProvider {
	case ProviderGroq, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q: must be %q, %q or %q", c.LLMProvider, ProviderGroq, ProviderAnthropic, ProviderOllama)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be positive, got %d", c.SessionCapacity)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative, got %d", c.HistoryLimit)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
