package shop

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/tradepost/internal/items"
)

// Reasons a single unit can be skipped during a commit.
const (
	ReasonInsufficientFunds = "insufficient funds"
	ReasonInventoryFull     = "inventory full"
	ReasonNotInInventory    = "not in inventory"
)

// UnitResult is the outcome of one single-unit buy or sell.
type UnitResult struct {
	Item   *items.Item
	Price  float64
	OK     bool
	Reason string // Empty when OK
}

// Receipt reports a commit unit by unit.
type Receipt struct {
	ID           string
	Shop         string
	SessionID    string
	ShopperID    string
	Mode         Mode
	At           time.Time
	Units        []UnitResult
	Succeeded    int
	Failed       int
	BalanceDelta float64 // Change to the shopper's purse
}

func (r *Receipt) record(u UnitResult) {
	r.Units = append(r.Units, u)
	if !u.OK {
		r.Failed++
		return
	}
	r.Succeeded++
	if r.Mode == ModeSelling {
		r.BalanceDelta += u.Price
	} else {
		r.BalanceDelta -= u.Price
	}
}

// Commit applies the pending transaction one unit at a time. A unit that
// cannot be paid for, has no room, or is no longer carried is skipped; units
// already applied stay applied and later units are still attempted. Each
// applied unit retracts one from the pending quantity, so whatever failed
// remains pending afterwards. Pending items the shopper can no longer see
// are left untouched, and no item is attempted beyond its availability.
// Subscribers get a single notification at the end.
func (s *Session) Commit() Receipt {
	s.lockOpen("Commit")

	receipt := Receipt{
		ID:        uuid.NewString(),
		Shop:      s.shop.Name(),
		SessionID: s.id,
		ShopperID: s.shopper.ID,
		Mode:      s.mode,
		At:        time.Now().UTC(),
	}

	for _, it := range s.transactableLocked() {
		quantity := min(s.pending[it], s.availabilitiesLocked()[it])
		for i := 0; i < quantity; i++ {
			price := s.pricesLocked()[it]
			var u UnitResult
			if s.mode == ModeSelling {
				u = s.sellUnitLocked(it, price)
			} else {
				u = s.buyUnitLocked(it, price)
			}
			if !u.OK {
				slog.Debug("commit unit skipped", "shop", receipt.Shop, "item", it.ID, "reason", u.Reason)
			}
			receipt.record(u)
		}
	}
	s.shop.mu.Unlock()

	slog.Info("shop transaction committed",
		"shop", receipt.Shop,
		"session", receipt.SessionID,
		"mode", receipt.Mode.String(),
		"succeeded", receipt.Succeeded,
		"failed", receipt.Failed,
		"balance_delta", receipt.BalanceDelta,
	)
	s.shop.notify(EventCommit, s.id)
	return receipt
}

func (s *Session) buyUnitLocked(it *items.Item, price float64) UnitResult {
	u := UnitResult{Item: it, Price: price}
	purse := s.shopper.Purse
	if purse.Balance() < price {
		u.Reason = ReasonInsufficientFunds
		return u
	}
	if !s.shopper.Inventory.AddToFirstEmptySlot(it, 1) {
		u.Reason = ReasonInventoryFull
		return u
	}

	purse.UpdateBalance(-price)
	s.shop.ledger[it]++
	s.addLocked(it, -1)
	u.OK = true
	return u
}

func (s *Session) sellUnitLocked(it *items.Item, price float64) UnitResult {
	u := UnitResult{Item: it, Price: price}
	inv := s.shopper.Inventory
	slot := firstSlotOf(inv, it)
	if slot < 0 {
		u.Reason = ReasonNotInInventory
		return u
	}

	inv.RemoveFromSlot(slot, 1)
	s.shopper.Purse.UpdateBalance(price)
	s.shop.ledger[it]--
	s.addLocked(it, -1)
	u.OK = true
	return u
}
