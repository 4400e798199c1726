// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Port            string
	ShutdownTimeout time.Duration

	// Database. Empty selects the in-memory backend.
	DatabaseURL string

	// DevSeed inserts a sample user with accounts and categories at startup.
	DevSeed bool

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DatabaseURL:     strings.TrimSpace(getEnv("DATABASE_URL", "")),
		DevSeed:         getEnvBool("DEV_SEED", false),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'json' or 'text'", c.LogFormat))
	}

	if c.ShutdownTimeout < time.Second || c.ShutdownTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be between 1s and 1m", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.ToLower(strings.TrimSpace(os.Getenv(key))); value != "" {
		return value == "1" || value == "true" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
