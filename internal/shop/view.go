package shop

import "github.com/talgya/tradepost/internal/items"

// ShopItem is a read-only snapshot of one transactable item. It is rebuilt on
// every query and goes stale after the next change notification.
type ShopItem struct {
	Item         *items.Item
	Availability int
	Price        float64
	Quantity     int // Units in the pending transaction
}

func (si ShopItem) Name() string { return si.Item.DisplayName }

func (si ShopItem) Icon() string { return si.Item.Icon }

func (si ShopItem) Category() items.Category { return si.Item.Category }

// Subtotal is price times the pending quantity.
func (si ShopItem) Subtotal() float64 {
	return si.Price * float64(si.Quantity)
}
