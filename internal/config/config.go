package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port            int
	DevMode         bool
	DatabasePath    string
	QuoteFeedURL    string
	QuoteRefresh    string // cron spec for the quote refresh job
	QuoteStaleAfter time.Duration
	StartingBalance string // fixed-point decimal, credited on account creation
	TxTimeout       time.Duration
	LogLevel        string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 5050),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/stockpedia.db"),
		QuoteFeedURL:    getEnv("QUOTE_FEED_URL", "http://localhost:9100"),
		QuoteRefresh:    getEnv("QUOTE_REFRESH_SCHEDULE", "@every 60s"),
		QuoteStaleAfter: getEnvAsDuration("QUOTE_STALE_AFTER", 5*time.Minute),
		StartingBalance: getEnv("STARTING_BALANCE", "1000000"),
		TxTimeout:       getEnvAsDuration("TX_TIMEOUT", 5*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.StartingBalance == "" {
		return fmt.Errorf("STARTING_BALANCE is required")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be positive")
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
