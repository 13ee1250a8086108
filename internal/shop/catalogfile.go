package shop

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/talgya/tradepost/internal/items"
)

type catalogFile struct {
	Name              string      `json:"name"`
	SellingPercentage *float64    `json:"selling_percentage"`
	MaxBarterDiscount *float64    `json:"max_barter_discount"`
	Stock             []stockFile `json:"stock"`
}

type stockFile struct {
	ItemID                string  `json:"item_id"`
	InitialStock          int     `json:"initial_stock"`
	BuyingDiscountPercent float64 `json:"buying_discount_percent"`
	LevelToUnlock         int     `json:"level_to_unlock"`
}

// LoadCatalogs reads a JSON array of shop catalogs from path, resolving item
// IDs through reg.
func LoadCatalogs(path string, reg Resolver) ([]*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogs: %w", err)
	}
	return ParseCatalogs(data, reg)
}

// ParseCatalogs decodes catalogs from JSON. Unknown item IDs are an error
// here, unlike ledger restores, because a catalog cannot be partially built.
func ParseCatalogs(data []byte, reg Resolver) ([]*Catalog, error) {
	var files []catalogFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parse catalogs: %w", err)
	}

	catalogs := make([]*Catalog, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Name] {
			return nil, fmt.Errorf("catalog %q: duplicate name", f.Name)
		}
		seen[f.Name] = true

		c := &Catalog{
			Name:              f.Name,
			SellingPercentage: DefaultSellingPercentage,
			MaxBarterDiscount: DefaultMaxBarterDiscount,
		}
		if f.SellingPercentage != nil {
			c.SellingPercentage = *f.SellingPercentage
		}
		if f.MaxBarterDiscount != nil {
			c.MaxBarterDiscount = *f.MaxBarterDiscount
		}

		for _, sf := range f.Stock {
			it, ok := reg.ResolveByID(sf.ItemID)
			if !ok {
				return nil, fmt.Errorf("catalog %q: %w %q", f.Name, items.ErrUnknownItem, sf.ItemID)
			}
			c.Stock = append(c.Stock, StockConfig{
				Item:                  it,
				InitialStock:          sf.InitialStock,
				BuyingDiscountPercent: sf.BuyingDiscountPercent,
				LevelToUnlock:         sf.LevelToUnlock,
			})
		}

		if err := c.Validate(); err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}
