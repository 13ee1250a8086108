package shop

import (
	"math"

	"github.com/talgya/tradepost/internal/items"
)

// Prices computes the unit price of every item visible at level.
//
// Selling: base price times the shop's selling percentage.
// Buying: base price times the barter multiplier, then times
// (1 - discount/100) for each stock entry of the item, in catalog order.
// No floor is applied: discounts that compound past zero give a negative
// price and it is returned as-is.
func Prices(c *Catalog, mode Mode, level int, barterStat float64) map[*items.Item]float64 {
	prices := make(map[*items.Item]float64, len(c.Stock))
	barter := barterMultiplier(c.MaxBarterDiscount, barterStat)

	for _, cfg := range c.Visible(level) {
		if mode == ModeSelling {
			prices[cfg.Item] = cfg.Item.Price * (c.SellingPercentage / 100)
			continue
		}

		price, ok := prices[cfg.Item]
		if !ok {
			price = cfg.Item.Price * barter
		}
		prices[cfg.Item] = price * (1 - cfg.BuyingDiscountPercent/100)
	}
	return prices
}

func barterMultiplier(maxDiscount, stat float64) float64 {
	return 1 - math.Min(maxDiscount, stat)/100
}
