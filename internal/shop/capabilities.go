package shop

import "github.com/talgya/tradepost/internal/items"

// Purse holds a shopper's currency.
type Purse interface {
	Balance() float64
	UpdateBalance(delta float64)
}

// Inventory is the slot container a shopper carries.
type Inventory interface {
	Size() int
	ItemInSlot(slot int) *items.Item
	NumberInSlot(slot int) int
	AddToFirstEmptySlot(item *items.Item, number int) bool
	RemoveFromSlot(slot int, number int)
	HasSpaceFor(list []*items.Item) bool
}

// Stats exposes the shopper's level and attributes. It is read-only here.
type Stats interface {
	Level() int
	Stat(kind Stat) float64
}

// Resolver maps persisted item IDs back to definitions.
type Resolver interface {
	ResolveByID(id string) (*items.Item, bool)
}

// Shopper bundles the collaborators a session needs. Purse and Inventory are
// required; Stats may be nil, which reads as level 0 with no barter discount.
type Shopper struct {
	ID        string
	Purse     Purse
	Inventory Inventory
	Stats     Stats
}

func (s Shopper) level() int {
	if s.Stats == nil {
		return 0
	}
	return s.Stats.Level()
}

func (s Shopper) barterStat() float64 {
	if s.Stats == nil {
		return 0
	}
	return s.Stats.Stat(StatBuyingDiscountPercentage)
}

// CountInInventory sums the units of item across every slot of inv.
func CountInInventory(inv Inventory, item *items.Item) int {
	if inv == nil {
		return 0
	}
	total := 0
	for i := 0; i < inv.Size(); i++ {
		if inv.ItemInSlot(i) == item {
			total += inv.NumberInSlot(i)
		}
	}
	return total
}

// firstSlotOf returns the first slot holding item, or -1.
func firstSlotOf(inv Inventory, item *items.Item) int {
	for i := 0; i < inv.Size(); i++ {
		if inv.ItemInSlot(i) == item {
			return i
		}
	}
	return -1
}
