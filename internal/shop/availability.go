package shop

import "github.com/talgya/tradepost/internal/items"

// Availabilities computes how many units of each visible item can be
// transacted right now.
//
// Buying: the sum of InitialStock over the item's visible entries, less the
// net units already sold. Selling: the units the shopper carries.
// Entries can be zero or negative; the view drops those.
func Availabilities(c *Catalog, mode Mode, level int, ledger Ledger, inv Inventory) map[*items.Item]int {
	avail := make(map[*items.Item]int, len(c.Stock))

	for _, cfg := range c.Visible(level) {
		if mode == ModeSelling {
			avail[cfg.Item] = CountInInventory(inv, cfg.Item)
			continue
		}

		if _, ok := avail[cfg.Item]; !ok {
			avail[cfg.Item] = -ledger.NetSold(cfg.Item)
		}
		avail[cfg.Item] += cfg.InitialStock
	}
	return avail
}
