package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "data/tradepost.db" || cfg.Port != 8080 || cfg.Seed != 42 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShopCount != 3 || cfg.AutosaveTicks != 60 || cfg.TickInterval != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StartingBalance != 100 || cfg.InventorySize != 16 || cfg.AdminKey != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", lvl)
	}
	if cfg.SessionIdle != 5*time.Minute || len(cfg.CORSOrigins) != 0 {
		t.Fatalf("unexpected session defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRADEPOST_PORT", "9090")
	t.Setenv("TRADEPOST_TICK_INTERVAL", "250ms")
	t.Setenv("TRADEPOST_LOG_LEVEL", "debug")
	t.Setenv("TRADEPOST_SESSION_IDLE", "30s")
	t.Setenv("TRADEPOST_CORS_ORIGINS", "https://shop.example.com,https://admin.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", lvl)
	}
	if cfg.SessionIdle != 30*time.Second {
		t.Fatalf("session idle = %s", cfg.SessionIdle)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Fatalf("cors origins = %q", cfg.CORSOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TRADEPOST_SHOP_COUNT=7\nTRADEPOST_ADMIN_KEY=secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("TRADEPOST_SHOP_COUNT")
		os.Unsetenv("TRADEPOST_ADMIN_KEY")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShopCount != 7 || cfg.AdminKey != "secret" {
		t.Fatalf(".env values not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad int", "TRADEPOST_PORT", "not-an-int", "parse env:"},
		{"bad duration", "TRADEPOST_TICK_INTERVAL", "soon", "parse env:"},
		{"port range", "TRADEPOST_PORT", "70000", "port"},
		{"zero shops", "TRADEPOST_SHOP_COUNT", "0", "shop count"},
		{"bad level", "TRADEPOST_LOG_LEVEL", "loud", "log level"},
		{"negative idle", "TRADEPOST_SESSION_IDLE", "-1s", "session idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}
