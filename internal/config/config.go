// Package config loads the engine's settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/simulator"
	"github.com/atmx/portfolio-engine/internal/store"
)

// Config holds application configuration.
type Config struct {
	Port          string
	DatabaseURL   string // empty selects the in-memory journal
	RedisURL      string // empty disables the journal cache
	CacheTTL      time.Duration
	TickSchedule  string
	HistoryWindow int
	StartingCash  decimal.Decimal
	LogLevel      slog.Level

	// JournalRetention caps price samples per instrument in the in-memory
	// journal.
	JournalRetention int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 30*time.Second),
		TickSchedule:  getEnv("TICK_SCHEDULE", simulator.DefaultSchedule),
		HistoryWindow: getEnvAsInt("HISTORY_WINDOW", catalog.DefaultWindow),
		StartingCash:  decimal.NewFromInt(50000),
		LogLevel:      slog.LevelInfo,

		JournalRetention: getEnvAsInt("JOURNAL_RETENTION", store.DefaultSampleRetention),
	}

	if v := os.Getenv("STARTING_CASH"); v != "" {
		cash, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("STARTING_CASH %q: %w", v, err)
		}
		cfg.StartingCash = cash
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL %q: %w", v, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.StartingCash.IsNegative() {
		return fmt.Errorf("STARTING_CASH must not be negative")
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("HISTORY_WINDOW must be at least 1")
	}
	if c.JournalRetention < 1 {
		return fmt.Errorf("JOURNAL_RETENTION must be at least 1")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.TickSchedule); err != nil {
		return fmt.Errorf("TICK_SCHEDULE %q: %w", c.TickSchedule, err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
