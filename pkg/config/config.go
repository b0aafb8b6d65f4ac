// Package config reads application configuration from environment
// variables, loading a local .env file first when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database      DatabaseConfig
	Import        ImportConfig
	Duplicates    DuplicatesConfig
	Observability ObservabilityConfig
	Jobs          JobsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ImportConfig struct {
	MaxTransactions  int
	MaxBatchOps      int
	BatchesPerSecond float64
	DateHint         string // auto, MM/DD/YYYY or DD/MM/YYYY
	PrimaryCurrency  string
	DefaultCategory  string
}

type DuplicatesConfig struct {
	DateToleranceDays  int
	AmountTolerancePct float64
	LookbackDays       int
	AutoSkipConfidence float64
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type JobsConfig struct {
	StaleSessionMaxAgeHours int
	ReaperSchedule          string // cron expression
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "casaledger-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Import: ImportConfig{
			MaxTransactions:  getEnvAsInt("IMPORT_MAX_TRANSACTIONS", 1000),
			MaxBatchOps:      getEnvAsInt("IMPORT_MAX_BATCH_OPS", 500),
			BatchesPerSecond: getEnvAsFloat("IMPORT_BATCHES_PER_SECOND", 0),
			DateHint:         getEnv("IMPORT_DATE_HINT", "auto"),
			PrimaryCurrency:  getEnv("PRIMARY_CURRENCY", "USD"),
			DefaultCategory:  getEnv("DEFAULT_CATEGORY", "other"),
		},
		Duplicates: DuplicatesConfig{
			DateToleranceDays:  getEnvAsInt("DUPLICATE_DATE_TOLERANCE_DAYS", 2),
			AmountTolerancePct: getEnvAsFloat("DUPLICATE_AMOUNT_TOLERANCE_PCT", 1),
			LookbackDays:       getEnvAsInt("DUPLICATE_LOOKBACK_DAYS", 90),
			AutoSkipConfidence: getEnvAsFloat("DUPLICATE_AUTO_SKIP_CONFIDENCE", 0.95),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Jobs: JobsConfig{
			StaleSessionMaxAgeHours: getEnvAsInt("STALE_SESSION_MAX_AGE_HOURS", 24),
			ReaperSchedule:          getEnv("STALE_SESSION_SCHEDULE", "0 3 * * *"),
		},
	}

	if cfg.Import.MaxBatchOps <= 0 {
		return nil, fmt.Errorf("IMPORT_MAX_BATCH_OPS must be positive, got %d", cfg.Import.MaxBatchOps)
	}
	return cfg, nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
