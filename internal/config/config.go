// Package config loads tradepost settings from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	DBPath          string        `env:"TRADEPOST_DB_PATH"          envDefault:"data/tradepost.db"`
	Port            int           `env:"TRADEPOST_PORT"             envDefault:"8080"`
	AdminKey        string        `env:"TRADEPOST_ADMIN_KEY"`
	ItemsPath       string        `env:"TRADEPOST_ITEMS_PATH"`
	CatalogPath     string        `env:"TRADEPOST_CATALOG_PATH"`
	Seed            int64         `env:"TRADEPOST_SEED"             envDefault:"42"`
	ShopCount       int           `env:"TRADEPOST_SHOP_COUNT"       envDefault:"3"`
	AutosaveTicks   uint64        `env:"TRADEPOST_AUTOSAVE_TICKS"   envDefault:"60"`
	TickInterval    time.Duration `env:"TRADEPOST_TICK_INTERVAL"    envDefault:"1s"`
	StartingBalance float64       `env:"TRADEPOST_STARTING_BALANCE" envDefault:"100"`
	InventorySize   int           `env:"TRADEPOST_INVENTORY_SIZE"   envDefault:"16"`
	LogLevel        string        `env:"TRADEPOST_LOG_LEVEL"        envDefault:"info"`

	// SessionIdle closes sessions no request has used for this long. Zero
	// disables reaping.
	SessionIdle time.Duration `env:"TRADEPOST_SESSION_IDLE" envDefault:"5m"`

	// CORSOrigins are allowed in addition to the local dev servers.
	CORSOrigins []string `env:"TRADEPOST_CORS_ORIGINS" envSeparator:","`
}

// Load reads the given .env files (".env" when none are named) and then
// parses the environment. Missing .env files are ignored; variables already
// set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
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

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.ShopCount <= 0:
		return fmt.Errorf("config: shop count must be positive, got %d", c.ShopCount)
	case c.InventorySize <= 0:
		return fmt.Errorf("config: inventory size must be positive, got %d", c.InventorySize)
	case c.TickInterval <= 0:
		return fmt.Errorf("config: tick interval must be positive, got %s", c.TickInterval)
	case c.StartingBalance < 0:
		return fmt.Errorf("config: starting balance must not be negative, got %v", c.StartingBalance)
	case c.SessionIdle < 0:
		return fmt.Errorf("config: session idle timeout must not be negative, got %s", c.SessionIdle)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts LogLevel ("debug", "info", "warn", "error") to a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}
