package shopper

import (
	"errors"
	"fmt"

	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/shop"
)

// Player owns a purse, an inventory, and stats.
type Player struct {
	ID        string
	Purse     *Purse
	Inventory *Inventory
	Stats     *BaseStats
}

// New creates a player with an empty inventory of the given size.
func New(id string, balance float64, slots, level int) *Player {
	return &Player{
		ID:        id,
		Purse:     NewPurse(balance),
		Inventory: NewInventory(slots),
		Stats:     NewBaseStats(level),
	}
}

// Shopper returns the capability bundle a shop session is opened with.
func (p *Player) Shopper() shop.Shopper {
	return shop.Shopper{
		ID:        p.ID,
		Purse:     p.Purse,
		Inventory: p.Inventory,
		Stats:     p.Stats,
	}
}

// SlotState is one persisted inventory slot. Empty slots have no item ID.
type SlotState struct {
	ItemID string `json:"item_id,omitempty"`
	Number int    `json:"number,omitempty"`
}

// State is the persisted form of a player.
type State struct {
	ID      string      `json:"id"`
	Balance float64     `json:"balance"`
	Level   int         `json:"level"`
	Barter  float64     `json:"barter"`
	Slots   []SlotState `json:"slots"`
}

// State captures the player for persistence.
func (p *Player) State() State {
	st := State{
		ID:      p.ID,
		Balance: p.Purse.Balance(),
		Level:   p.Stats.Level(),
		Barter:  p.Stats.Stat(shop.StatBuyingDiscountPercentage),
		Slots:   make([]SlotState, p.Inventory.Size()),
	}
	for i := range st.Slots {
		if it := p.Inventory.ItemInSlot(i); it != nil {
			st.Slots[i] = SlotState{ItemID: it.ID, Number: p.Inventory.NumberInSlot(i)}
		}
	}
	return st
}

// FromState rebuilds a player. Slots naming unknown items are left empty and
// reported in the returned error; the player is still usable.
func FromState(st State, reg shop.Resolver) (*Player, error) {
	p := New(st.ID, st.Balance, len(st.Slots), st.Level)
	p.Stats.SetStat(shop.StatBuyingDiscountPercentage, st.Barter)

	var errs []error
	for i, s := range st.Slots {
		if s.ItemID == "" || s.Number <= 0 {
			continue
		}
		it, ok := reg.ResolveByID(s.ItemID)
		if !ok {
			errs = append(errs, fmt.Errorf("shopper %s slot %d: %w %q", st.ID, i, items.ErrUnknownItem, s.ItemID))
			continue
		}
		p.Inventory.slots[i] = slot{item: it, number: s.Number}
	}
	return p, errors.Join(errs...)
}
