package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("unexpected default port: %q", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("unexpected default log format: %q", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected default shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DEV_SEED", "true")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg := Load()
	if cfg.Port != "9999" || !cfg.DevSeed || cfg.LogFormat != "text" || cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"non-numeric port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"shutdown too short", func(c *Config) { c.ShutdownTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
