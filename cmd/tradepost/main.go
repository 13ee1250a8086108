// Command tradepost runs the shop transaction server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tradepost/internal/api"
	"github.com/talgya/tradepost/internal/config"
	"github.com/talgya/tradepost/internal/engine"
	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/persistence"
	"github.com/talgya/tradepost/internal/shop"
	"github.com/talgya/tradepost/internal/stockgen"
	"github.com/talgya/tradepost/internal/town"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Tradepost shop server", "seed", cfg.Seed, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Items and catalogs ─────────────────────────────────────
	reg := items.DefaultRegistry()
	if cfg.ItemsPath != "" {
		reg, err = items.LoadRegistry(cfg.ItemsPath)
		if err != nil {
			slog.Error("failed to load items", "path", cfg.ItemsPath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("items registered", "count", reg.Len())

	var catalogs []*shop.Catalog
	if cfg.CatalogPath != "" {
		catalogs, err = shop.LoadCatalogs(cfg.CatalogPath, reg)
		if err != nil {
			slog.Error("failed to load catalogs", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	} else {
		gen := stockgen.DefaultGenConfig()
		gen.Seed = cfg.Seed
		gen.Shops = cfg.ShopCount
		catalogs = stockgen.Generate(reg, gen)
	}
	for _, c := range catalogs {
		slog.Info("shop", "name", c.Name, "items", len(c.Items()), "selling_pct", c.SellingPercentage)
	}

	t, err := town.New(reg, catalogs)
	if err != nil {
		slog.Error("failed to build town", "error", err)
		os.Exit(1)
	}
	t.Audit = db
	t.StartingBalance = cfg.StartingBalance
	t.InventorySize = cfg.InventorySize

	// ── Load or seed state ───────────────────────────────────────────
	var startTick uint64
	if db.HasState() {
		slog.Info("found saved state, loading...")
		if err := t.Load(db); err != nil {
			if !errors.Is(err, items.ErrUnknownItem) {
				slog.Error("failed to load state", "error", err)
				os.Exit(1)
			}
			slog.Warn("state loaded with unknown items dropped", "error", err)
		}
		if tickStr, err := db.GetMeta("last_tick"); err == nil {
			if n, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
				startTick = n
			}
		}
	} else {
		slog.Info("no saved state found, starting fresh")
		if _, err := t.AddShopper("guest"); err != nil {
			slog.Error("failed to create guest shopper", "error", err)
			os.Exit(1)
		}
		if err := t.Save(db, 0); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	for _, id := range t.ShopperIDs() {
		if p, err := t.Shopper(id); err == nil {
			slog.Info("shopper", "id", id, "balance", humanize.CommafWithDigits(p.Purse.Balance(), 2))
		}
	}

	// ── Tick engine ───────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.SetTick(startTick)
	eng.Interval = cfg.TickInterval
	eng.SaveEvery = cfg.AutosaveTicks
	eng.OnTick = func(uint64) {
		t.ReapIdle(cfg.SessionIdle)
	}
	eng.OnSave = func(tick uint64) {
		if !t.Dirty() {
			return
		}
		if err := t.Save(db, tick); err != nil {
			slog.Error("autosave failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("TRADEPOST_ADMIN_KEY not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Town:        t,
		Eng:         eng,
		DB:          db,
		Port:        cfg.Port,
		AdminKey:    cfg.AdminKey,
		CORSOrigins: cfg.CORSOrigins,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nTradepost is open: %d shops, %d shoppers.\n", len(t.Shops()), len(t.ShopperIDs()))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d\n", startTick)
	}
	fmt.Println("Serving... (Ctrl+C to stop)")

	eng.Run(ctx)

	// Final save on shutdown.
	slog.Info("final save...")
	if err := t.Save(db, eng.CurrentTick()); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Tradepost closed. State saved.")
}
