// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the database and snapshots (always absolute)
	RunSpecPath string // Path to the YAML run specification
	Schedule    string // Cron expression for unattended runs; empty disables the scheduler
	LogLevel    string
	Port        int
	DevMode     bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FORESIGHT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		RunSpecPath: getEnv("FORESIGHT_RUN_SPEC", "run.yaml"),
		Schedule:    getEnv("FORESIGHT_SCHEDULE", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvAsInt("FORESIGHT_PORT", 8090),
		DevMode:     getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RunSpecPath == "" {
		return fmt.Errorf("run spec path cannot be empty")
	}
	return nil
}

// DatabasePath returns the SQLite database location inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "foresight.db")
}

// SnapshotDir returns the scenario snapshot directory inside DataDir.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
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
