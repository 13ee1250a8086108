package shopper

import (
	"sync"

	"github.com/talgya/tradepost/internal/items"
)

type slot struct {
	item   *items.Item
	number int
}

// Inventory is a fixed number of slots. Stackable items share one slot per
// item; everything else takes one slot per unit.
type Inventory struct {
	mu    sync.RWMutex
	slots []slot
}

// NewInventory creates an empty inventory with size slots.
func NewInventory(size int) *Inventory {
	if size < 0 {
		size = 0
	}
	return &Inventory{slots: make([]slot, size)}
}

// Size returns the slot count.
func (inv *Inventory) Size() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.slots)
}

// ItemInSlot returns the item in slot i, or nil when empty or out of range.
func (inv *Inventory) ItemInSlot(i int) *items.Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if i < 0 || i >= len(inv.slots) {
		return nil
	}
	return inv.slots[i].item
}

// NumberInSlot returns the unit count in slot i.
func (inv *Inventory) NumberInSlot(i int) int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if i < 0 || i >= len(inv.slots) {
		return 0
	}
	return inv.slots[i].number
}

// AddToFirstEmptySlot places number units of item. Stackable items join an
// existing stack when there is one. Returns false when there is no room.
func (inv *Inventory) AddToFirstEmptySlot(item *items.Item, number int) bool {
	if item == nil || number <= 0 {
		return false
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()

	i := inv.findSlotLocked(item)
	if i < 0 {
		return false
	}
	inv.slots[i].item = item
	inv.slots[i].number += number
	return true
}

// RemoveFromSlot takes number units out of slot i, emptying it at zero.
func (inv *Inventory) RemoveFromSlot(i int, number int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if i < 0 || i >= len(inv.slots) {
		return
	}
	inv.slots[i].number -= number
	if inv.slots[i].number <= 0 {
		inv.slots[i] = slot{}
	}
}

// HasSpaceFor reports whether every item in list could be added.
func (inv *Inventory) HasSpaceFor(list []*items.Item) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	free := inv.freeSlotsLocked()
	stacked := make(map[*items.Item]bool)
	for _, it := range list {
		if it.Stackable {
			if inv.stackOfLocked(it) >= 0 || stacked[it] {
				continue
			}
			stacked[it] = true
		}
		if free <= 0 {
			return false
		}
		free--
	}
	return true
}

// FreeSlots returns the number of empty slots.
func (inv *Inventory) FreeSlots() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.freeSlotsLocked()
}

// Count returns the total units of item across all slots.
func (inv *Inventory) Count(item *items.Item) int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	total := 0
	for _, s := range inv.slots {
		if s.item == item {
			total += s.number
		}
	}
	return total
}

func (inv *Inventory) freeSlotsLocked() int {
	free := 0
	for _, s := range inv.slots {
		if s.item == nil {
			free++
		}
	}
	return free
}

func (inv *Inventory) stackOfLocked(item *items.Item) int {
	for i, s := range inv.slots {
		if s.item == item {
			return i
		}
	}
	return -1
}

// findSlotLocked picks where item would go: its existing stack when
// stackable, else the first empty slot.
func (inv *Inventory) findSlotLocked(item *items.Item) int {
	if item.Stackable {
		if i := inv.stackOfLocked(item); i >= 0 {
			return i
		}
	}
	for i, s := range inv.slots {
		if s.item == nil {
			return i
		}
	}
	return -1
}
