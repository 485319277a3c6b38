/*
Package config loads application configuration.

PURPOSE:
  All runtime knobs in one struct, read from environment variables with
  sensible defaults. A local .env file is loaded first (via godotenv)
  without overriding variables already set in the environment.
*/
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage. DatabaseURL selects the PostgreSQL backend when set;
	// otherwise SQLitePath is used (":memory:" works for local runs).
	DatabaseURL string
	SQLitePath  string

	// HTTP
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// SeedDemoData loads the demo fleet on startup.
	SeedDemoData bool
}

// Load reads configuration from the environment with defaults.
// A .env file in the working directory is merged in if present.
func Load() *Config {
	// Missing .env is fine; real env always wins.
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvInt("PORT", 3001),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "fueleu.db"),

		ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		SeedDemoData: getEnv("SEED_DEMO_DATA", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
