// Package stockgen generates shop catalogs from layered simplex noise, so a
// seed alone reproduces every shop's stock, discounts, and unlock levels.
package stockgen

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/shop"
)

// GenConfig holds catalog generation parameters.
type GenConfig struct {
	Seed           int64   // Random seed (0 = random)
	Shops          int     // Number of catalogs to generate
	StockChance    float64 // Rough share of items each shop carries (0.0–1.0)
	MaxStock       int     // Upper bound on a single entry's initial stock
	MaxDiscount    float64 // Upper bound on an entry's buying discount, percent
	MaxUnlockLevel int     // Highest level an entry can require
}

// DefaultGenConfig returns the configuration used by the server.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:           0,
		Shops:          3,
		StockChance:    0.55,
		MaxStock:       12,
		MaxDiscount:    25,
		MaxUnlockLevel: 5,
	}
}

var (
	nameAdjectives = []string{"Gilded", "Rusty", "Wandering", "Crooked", "Silver", "Humble", "Drowsy", "Copper", "Lantern", "Thorn"}
	nameNouns      = []string{"Anvil", "Flask", "Satchel", "Griffin", "Lantern", "Barrel", "Quill", "Kettle", "Stag", "Crown"}
)

// Generate builds cfg.Shops catalogs over every item in reg. Every catalog
// carries at least one entry.
func Generate(reg *items.Registry, cfg GenConfig) []*shop.Catalog {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Independent layers per property.
	presenceNoise := opensimplex.NewNormalized(seed)
	stockNoise := opensimplex.NewNormalized(seed + 1)
	discountNoise := opensimplex.NewNormalized(seed + 2)
	levelNoise := opensimplex.NewNormalized(seed + 3)
	rng := rand.New(rand.NewSource(seed + 400))

	all := reg.All()
	catalogs := make([]*shop.Catalog, 0, cfg.Shops)
	usedNames := make(map[string]bool, cfg.Shops)

	for i := 0; i < cfg.Shops; i++ {
		x := float64(i) * 1.7

		c := &shop.Catalog{
			Name:              uniqueName(rng, usedNames),
			SellingPercentage: math.Round(50 + octaveNoise(stockNoise, x, -3, 2, 0.5, 0.5)*40),
			MaxBarterDiscount: shop.DefaultMaxBarterDiscount,
		}

		bestIdx, bestPresence := 0, -1.0
		for j, it := range all {
			y := float64(j) * 1.3
			presence := octaveNoise(presenceNoise, x, y, 3, 0.45, 0.5)
			if presence > bestPresence {
				bestIdx, bestPresence = j, presence
			}
			if presence < 1-cfg.StockChance {
				continue
			}
			c.Stock = append(c.Stock, entryFor(it, x, y, cfg, stockNoise, discountNoise, levelNoise))
		}

		if len(c.Stock) == 0 && len(all) > 0 {
			y := float64(bestIdx) * 1.3
			e := entryFor(all[bestIdx], x, y, cfg, stockNoise, discountNoise, levelNoise)
			e.LevelToUnlock = 0
			c.Stock = append(c.Stock, e)
		}
		catalogs = append(catalogs, c)
	}
	return catalogs
}

func entryFor(it *items.Item, x, y float64, cfg GenConfig, stockN, discN, levelN opensimplex.Noise) shop.StockConfig {
	stock := 1 + int(octaveNoise(stockN, x, y, 2, 0.6, 0.5)*float64(cfg.MaxStock))
	if stock > cfg.MaxStock {
		stock = cfg.MaxStock
	}

	// Discounts are sparse: only the upper third of the noise field gets one.
	discount := 0.0
	if d := octaveNoise(discN, x, y, 2, 0.8, 0.5); d > 0.66 {
		discount = math.Round((d - 0.66) / 0.34 * cfg.MaxDiscount)
	}

	// Square the sample so most entries unlock early.
	l := octaveNoise(levelN, x, y, 1, 0.5, 0.5)
	level := int(l * l * float64(cfg.MaxUnlockLevel+1))
	if level > cfg.MaxUnlockLevel {
		level = cfg.MaxUnlockLevel
	}

	return shop.StockConfig{
		Item:                  it,
		InitialStock:          stock,
		BuyingDiscountPercent: discount,
		LevelToUnlock:         level,
	}
}

func uniqueName(rng *rand.Rand, used map[string]bool) string {
	base := "The " + nameAdjectives[rng.Intn(len(nameAdjectives))] + " " + nameNouns[rng.Intn(len(nameNouns))]
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s %d", base, n)
	}
	used[name] = true
	return name
}

// octaveNoise layers several frequencies of normalized noise; the result
// stays in [0, 1).
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
