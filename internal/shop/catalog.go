// Package shop implements the shop transaction and pricing engine: catalog
// visibility, buy/sell pricing, availability against the stock-sold ledger,
// the pending transaction of a shopper session, and unit-by-unit commits.
package shop

import (
	"fmt"

	"github.com/talgya/tradepost/internal/items"
)

// Shop-wide defaults applied by the catalog loader when a field is omitted.
const (
	DefaultSellingPercentage = 80.0
	DefaultMaxBarterDiscount = 80.0
)

// StockConfig is one catalog entry. The same item may appear in several
// entries; their stock adds up and their discounts compound.
type StockConfig struct {
	Item                  *items.Item
	InitialStock          int     // Units the shop can sell before restock
	BuyingDiscountPercent float64 // 0–100, applied when the shop sells to the shopper
	LevelToUnlock         int     // Minimum shopper level for the entry to be visible
}

// Catalog is the static configuration of one shop.
type Catalog struct {
	Name              string
	SellingPercentage float64 // Percent of base price paid when buying back
	MaxBarterDiscount float64 // Cap on the shopper's barter stat
	Stock             []StockConfig
}

// Validate checks ranges a shop relies on.
func (c *Catalog) Validate() error {
	if c == nil {
		return fmt.Errorf("catalog is nil")
	}
	if c.Name == "" {
		return fmt.Errorf("catalog: empty name")
	}
	if c.SellingPercentage < 0 || c.SellingPercentage > 100 {
		return fmt.Errorf("catalog %q: selling percentage %v out of range 0-100", c.Name, c.SellingPercentage)
	}
	if c.MaxBarterDiscount < 0 || c.MaxBarterDiscount > 100 {
		return fmt.Errorf("catalog %q: max barter discount %v out of range 0-100", c.Name, c.MaxBarterDiscount)
	}
	for i, cfg := range c.Stock {
		if cfg.Item == nil {
			return fmt.Errorf("catalog %q: stock %d has no item", c.Name, i)
		}
		if cfg.InitialStock < 0 {
			return fmt.Errorf("catalog %q: stock %d (%s) negative initial stock", c.Name, i, cfg.Item.ID)
		}
		if cfg.BuyingDiscountPercent < 0 || cfg.BuyingDiscountPercent > 100 {
			return fmt.Errorf("catalog %q: stock %d (%s) discount %v out of range 0-100",
				c.Name, i, cfg.Item.ID, cfg.BuyingDiscountPercent)
		}
	}
	return nil
}

// Visible returns the entries unlocked at the given shopper level, in
// catalog order.
func (c *Catalog) Visible(level int) []StockConfig {
	out := make([]StockConfig, 0, len(c.Stock))
	for _, cfg := range c.Stock {
		if cfg.LevelToUnlock > level {
			continue
		}
		out = append(out, cfg)
	}
	return out
}

// visibleItems returns each unlocked item once, in first-appearance order.
func (c *Catalog) visibleItems(level int) []*items.Item {
	seen := make(map[*items.Item]bool, len(c.Stock))
	var out []*items.Item
	for _, cfg := range c.Visible(level) {
		if seen[cfg.Item] {
			continue
		}
		seen[cfg.Item] = true
		out = append(out, cfg.Item)
	}
	return out
}

// Items returns every distinct item in the catalog regardless of level.
func (c *Catalog) Items() []*items.Item {
	return c.visibleItems(int(^uint(0) >> 1))
}
