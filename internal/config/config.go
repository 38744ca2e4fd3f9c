// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration shared by the cmd/ tools.
type Config struct {
	JournalPath    string        `env:"NANAUTS_JOURNAL_PATH" envDefault:"nanauts.db"`
	LogLevel       string        `env:"NANAUTS_LOG_LEVEL" envDefault:"info"`
	DebugQuery     string        `env:"NANAUTS_DEBUG_QUERY"`
	RulesFile      string        `env:"NANAUTS_RULES_FILE"`
	HealthAddr     string        `env:"NANAUTS_HEALTH_ADDR"`
	SurfaceTimeout time.Duration `env:"NANAUTS_SURFACE_TIMEOUT" envDefault:"10s"`
	TickInterval   time.Duration `env:"NANAUTS_TICK_INTERVAL" envDefault:"100ms"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads dotenv files (missing ones are skipped; variables already set
// win) and then parses the environment.
func Load(dotenv ...string) (Config, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the frame loop cannot run with.
func (c Config) Validate() error {
	if c.SurfaceTimeout <= 0 {
		return fmt.Errorf("surface timeout must be positive, got %s", c.SurfaceTimeout)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	return nil
}
