package shop

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/tradepost/internal/items"
)

// Ledger counts net units the shop has sold, per item. Positive means the
// shop sold units; negative means it bought back more than it sold.
type Ledger map[*items.Item]int

// NetSold returns the counter for item (0 when absent).
func (l Ledger) NetSold(item *items.Item) int {
	return l[item]
}

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for it, n := range l {
		out[it] = n
	}
	return out
}

// Capture converts the ledger to its persisted form: item ID → net sold.
func (l Ledger) Capture() map[string]int {
	state := make(map[string]int, len(l))
	for it, n := range l {
		state[it.GetID()] = n
	}
	return state
}

// RestoreLedger rebuilds a ledger from its persisted form. IDs the resolver
// does not know are logged and skipped; the rest still load. The returned
// error joins one ErrUnknownItem per skipped ID.
func RestoreLedger(shopName string, state map[string]int, reg Resolver) (Ledger, error) {
	ids := make([]string, 0, len(state))
	for id := range state {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ledger := make(Ledger, len(state))
	var errs []error
	for _, id := range ids {
		it, ok := reg.ResolveByID(id)
		if !ok {
			slog.Warn("skipping unknown item in stock ledger", "shop", shopName, "item_id", id, "net_sold", state[id])
			errs = append(errs, fmt.Errorf("restore %s: %w %q", shopName, items.ErrUnknownItem, id))
			continue
		}
		ledger[it] = state[id]
	}
	return ledger, errors.Join(errs...)
}
