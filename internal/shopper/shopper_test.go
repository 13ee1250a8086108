package shopper

import (
	"errors"
	"testing"

	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/shop"
)

var (
	potion = &items.Item{ID: "potion", DisplayName: "Potion", Category: items.CategoryPotion, Price: 10, Stackable: true}
	sword  = &items.Item{ID: "sword", DisplayName: "Sword", Category: items.CategoryWeapon, Price: 50}
)

func TestPurse(t *testing.T) {
	p := NewPurse(100)
	p.UpdateBalance(-30)
	p.UpdateBalance(5.5)
	if got := p.Balance(); got != 75.5 {
		t.Fatalf("balance = %v, want 75.5", got)
	}
}

func TestInventoryStacksStackables(t *testing.T) {
	inv := NewInventory(2)
	for i := 0; i < 5; i++ {
		if !inv.AddToFirstEmptySlot(potion, 1) {
			t.Fatalf("add potion %d failed", i)
		}
	}
	if inv.FreeSlots() != 1 {
		t.Fatalf("free slots = %d, want 1", inv.FreeSlots())
	}
	if inv.NumberInSlot(0) != 5 || inv.ItemInSlot(0) != potion {
		t.Fatalf("slot 0 = %v x%d", inv.ItemInSlot(0), inv.NumberInSlot(0))
	}
}

func TestInventoryNonStackableFillsSlots(t *testing.T) {
	inv := NewInventory(2)
	if !inv.AddToFirstEmptySlot(sword, 1) || !inv.AddToFirstEmptySlot(sword, 1) {
		t.Fatal("expected two swords to fit")
	}
	if inv.AddToFirstEmptySlot(sword, 1) {
		t.Fatal("third sword should not fit")
	}
	if inv.Count(sword) != 2 {
		t.Fatalf("count = %d, want 2", inv.Count(sword))
	}

	inv.RemoveFromSlot(0, 1)
	if inv.ItemInSlot(0) != nil || inv.FreeSlots() != 1 {
		t.Fatal("slot 0 should be empty after removing its only unit")
	}
}

func TestInventoryRejectsBadAdds(t *testing.T) {
	inv := NewInventory(1)
	if inv.AddToFirstEmptySlot(nil, 1) || inv.AddToFirstEmptySlot(sword, 0) {
		t.Fatal("expected nil item and zero count to be rejected")
	}
	if inv.ItemInSlot(-1) != nil || inv.NumberInSlot(5) != 0 {
		t.Fatal("out of range slots should read empty")
	}
	inv.RemoveFromSlot(9, 1) // no panic
}

func TestHasSpaceFor(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		held  []*items.Item
		query []*items.Item
		want  bool
	}{
		{"empty list", 0, nil, nil, true},
		{"stackables share a slot", 1, nil, []*items.Item{potion, potion, potion}, true},
		{"stack joins existing", 1, []*items.Item{potion}, []*items.Item{potion, potion}, true},
		{"swords need a slot each", 2, nil, []*items.Item{sword, sword, sword}, false},
		{"mixed fits exactly", 3, nil, []*items.Item{sword, potion, sword, potion}, true},
		{"mixed overflows", 2, []*items.Item{sword}, []*items.Item{sword, potion}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInventory(tt.size)
			for _, it := range tt.held {
				if !inv.AddToFirstEmptySlot(it, 1) {
					t.Fatalf("setup add %s failed", it.ID)
				}
			}
			if got := inv.HasSpaceFor(tt.query); got != tt.want {
				t.Fatalf("HasSpaceFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseStats(t *testing.T) {
	s := NewBaseStats(3)
	if s.Stat(shop.StatBuyingDiscountPercentage) != 0 {
		t.Fatal("unset stat should be 0")
	}
	s.SetStat(shop.StatBuyingDiscountPercentage, 15)
	s.SetLevel(4)
	if s.Level() != 4 || s.Stat(shop.StatBuyingDiscountPercentage) != 15 {
		t.Fatalf("stats = level %d barter %v", s.Level(), s.Stat(shop.StatBuyingDiscountPercentage))
	}
}

func TestPlayerStateRoundTrip(t *testing.T) {
	reg, err := items.NewRegistry(potion, sword)
	if err != nil {
		t.Fatal(err)
	}
	p := New("alice", 42, 3, 2)
	p.Stats.SetStat(shop.StatBuyingDiscountPercentage, 10)
	p.Inventory.AddToFirstEmptySlot(potion, 4)
	p.Inventory.AddToFirstEmptySlot(sword, 1)

	restored, err := FromState(p.State(), reg)
	if err != nil {
		t.Fatalf("from state: %v", err)
	}
	if restored.Purse.Balance() != 42 || restored.Stats.Level() != 2 {
		t.Fatalf("restored balance %v level %d", restored.Purse.Balance(), restored.Stats.Level())
	}
	if restored.Stats.Stat(shop.StatBuyingDiscountPercentage) != 10 {
		t.Fatal("barter stat lost")
	}
	if restored.Inventory.Count(potion) != 4 || restored.Inventory.Count(sword) != 1 {
		t.Fatal("inventory contents lost")
	}
	if restored.Inventory.Size() != 3 {
		t.Fatalf("size = %d, want 3", restored.Inventory.Size())
	}
}

func TestFromStateUnknownItem(t *testing.T) {
	reg, _ := items.NewRegistry(potion)
	st := State{ID: "bob", Slots: []SlotState{{ItemID: "potion", Number: 2}, {ItemID: "ghost", Number: 1}}}

	p, err := FromState(st, reg)
	if !errors.Is(err, items.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if p.Inventory.Count(potion) != 2 || p.Inventory.ItemInSlot(1) != nil {
		t.Fatal("known slot should load and unknown slot stay empty")
	}
}

func TestPlayerSatisfiesShopCapabilities(t *testing.T) {
	var _ shop.Purse = (*Purse)(nil)
	var _ shop.Inventory = (*Inventory)(nil)
	var _ shop.Stats = (*BaseStats)(nil)

	s := New("carol", 1, 1, 0).Shopper()
	if s.ID != "carol" || s.Purse == nil || s.Inventory == nil || s.Stats == nil {
		t.Fatalf("incomplete shopper: %+v", s)
	}
}
