package stockgen

import (
	"testing"

	"github.com/talgya/tradepost/internal/items"
)

func TestGenerateDeterministic(t *testing.T) {
	reg := items.DefaultRegistry()
	cfg := DefaultGenConfig()
	cfg.Seed = 42
	cfg.Shops = 5

	a := Generate(reg, cfg)
	b := Generate(reg, cfg)
	if len(a) != 5 || len(b) != 5 {
		t.Fatalf("got %d and %d catalogs, want 5", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].SellingPercentage != b[i].SellingPercentage {
			t.Fatalf("catalog %d header differs: %+v vs %+v", i, a[i], b[i])
		}
		if len(a[i].Stock) != len(b[i].Stock) {
			t.Fatalf("catalog %d stock length differs", i)
		}
		for j := range a[i].Stock {
			if a[i].Stock[j] != b[i].Stock[j] {
				t.Fatalf("catalog %d entry %d differs: %+v vs %+v", i, j, a[i].Stock[j], b[i].Stock[j])
			}
		}
	}
}

func TestGenerateProducesValidCatalogs(t *testing.T) {
	reg := items.DefaultRegistry()
	for _, seed := range []int64{1, 7, 99, 12345} {
		cfg := DefaultGenConfig()
		cfg.Seed = seed
		cfg.Shops = 8

		names := make(map[string]bool)
		for _, c := range Generate(reg, cfg) {
			if err := c.Validate(); err != nil {
				t.Fatalf("seed %d: %v", seed, err)
			}
			if names[c.Name] {
				t.Fatalf("seed %d: duplicate name %q", seed, c.Name)
			}
			names[c.Name] = true
			if len(c.Stock) == 0 {
				t.Fatalf("seed %d: %q has no stock", seed, c.Name)
			}
			for _, e := range c.Stock {
				if e.InitialStock < 1 || e.InitialStock > cfg.MaxStock {
					t.Fatalf("seed %d: stock %d out of range", seed, e.InitialStock)
				}
				if e.BuyingDiscountPercent < 0 || e.BuyingDiscountPercent > cfg.MaxDiscount {
					t.Fatalf("seed %d: discount %v out of range", seed, e.BuyingDiscountPercent)
				}
				if e.LevelToUnlock < 0 || e.LevelToUnlock > cfg.MaxUnlockLevel {
					t.Fatalf("seed %d: level %d out of range", seed, e.LevelToUnlock)
				}
			}
		}
	}
}

func TestGenerateAlwaysStocksSomething(t *testing.T) {
	reg := items.DefaultRegistry()
	cfg := DefaultGenConfig()
	cfg.Seed = 3
	cfg.StockChance = 0

	for _, c := range Generate(reg, cfg) {
		if len(c.Stock) != 1 || c.Stock[0].LevelToUnlock != 0 {
			t.Fatalf("%q: want exactly one level-0 fallback entry, got %+v", c.Name, c.Stock)
		}
	}
}
