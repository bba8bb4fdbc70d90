package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/nova-relay/internal/memory"
)

// Config contains all runtime settings for the chat relay.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel string
	LogFile  string

	BotName string

	MemoryMaxMessages   int
	MemoryMaxAgeMinutes float64

	BackendAdapterMode  string
	BackendChatURL      string
	BackendClearURL     string
	BackendSource       string
	BackendTimeout      time.Duration
	BackendClearTimeout time.Duration
	BackendMaxRetries   int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	TranscriptDir       string
	TranscriptRedactPII bool
	DatabaseURL         string
}

// MemoryMaxAge converts the configured minute count to a duration.
func (c Config) MemoryMaxAge() time.Duration {
	return memory.MaxAgeMinutes(c.MemoryMaxAgeMinutes)
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "nova"),
		AllowAnyOrigin:   false,
		// The bot has always logged at debug, to stderr and a local file.
		LogLevel:            envOrDefault("LOG_LEVEL", "debug"),
		LogFile:             envOrDefault("LOG_FILE", "nova-relay.log"),
		BotName:             envOrDefault("BOT_NAME", "Nova"),
		MemoryMaxMessages:   10,
		MemoryMaxAgeMinutes: 30,
		BackendAdapterMode:  envOrDefault("BACKEND_ADAPTER_MODE", "auto"),
		BackendChatURL:      stringsTrimSpace("BACKEND_CHAT_URL"),
		BackendClearURL:     stringsTrimSpace("BACKEND_CLEAR_URL"),
		BackendSource:       envOrDefault("BACKEND_SOURCE", "discord"),
		BackendTimeout:      30 * time.Second,
		BackendClearTimeout: 10 * time.Second,
		BackendMaxRetries:   1,
		OpenAIAPIKey:        stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:       stringsTrimSpace("OPENAI_BASE_URL"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		TranscriptDir:       envOrDefault("TRANSCRIPT_DIR", "nova-memory/conversations"),
		TranscriptRedactPII: false,
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:     15 * time.Second,
	}
	// An explicitly empty value disables the sink instead of falling back to the default.
	if v, ok := os.LookupEnv("LOG_FILE"); ok && strings.TrimSpace(v) == "" {
		cfg.LogFile = ""
	}
	if v, ok := os.LookupEnv("TRANSCRIPT_DIR"); ok && strings.TrimSpace(v) == "" {
		cfg.TranscriptDir = ""
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxMessages, err = intFromEnv("MEMORY_MAX_MESSAGES", cfg.MemoryMaxMessages)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxAgeMinutes, err = floatFromEnv("MEMORY_MAX_AGE_MINUTES", cfg.MemoryMaxAgeMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendTimeout, err = durationFromEnv("BACKEND_TIMEOUT", cfg.BackendTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendClearTimeout, err = durationFromEnv("BACKEND_CLEAR_TIMEOUT", cfg.BackendClearTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendMaxRetries, err = intFromEnv("BACKEND_MAX_RETRIES", cfg.BackendMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscriptRedactPII, err = boolFromEnv("TRANSCRIPT_REDACT_PII", cfg.TranscriptRedactPII)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that do not depend on where the values came from.
func (c Config) Validate() error {
	if c.MemoryMaxMessages <= 0 {
		return fmt.Errorf("MEMORY_MAX_MESSAGES must be positive")
	}
	if c.MemoryMaxAgeMinutes <= 0 {
		return fmt.Errorf("MEMORY_MAX_AGE_MINUTES must be positive")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	if c.BackendClearTimeout <= 0 {
		return fmt.Errorf("BACKEND_CLEAR_TIMEOUT must be positive")
	}
	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES must be >= 0")
	}
	if strings.TrimSpace(c.BotName) == "" {
		return fmt.Errorf("BOT_NAME must not be empty")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
