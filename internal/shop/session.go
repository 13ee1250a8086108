package shop

import (
	"fmt"

	"github.com/talgya/tradepost/internal/items"
)

// Session is one shopper's visit to a shop. It holds the pending transaction
// and the current mode and category filter. A closed session must not be
// used again: mutating a closed session panics.
type Session struct {
	id      string
	shop    *Shop
	shopper Shopper

	// Guarded by shop.mu.
	mode    Mode
	filter  items.Category
	pending map[*items.Item]int
	closed  bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Shop returns the shop this session is open on.
func (s *Session) Shop() *Shop { return s.shop }

// Shopper returns the collaborators injected at Begin.
func (s *Session) Shopper() Shopper { return s.shopper }

// lockOpen takes the shop lock. Using a closed session is a caller bug, so
// it releases the lock and panics.
func (s *Session) lockOpen(op string) {
	s.shop.mu.Lock()
	if s.closed {
		s.shop.mu.Unlock()
		panic(fmt.Sprintf("shop %s: %s on closed session %s", s.shop.Name(), op, s.id))
	}
}

// Close discards the pending transaction and frees the shop for the next
// shopper. Closing twice is a no-op.
func (s *Session) Close() {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pending = nil
	if s.shop.active == s {
		s.shop.active = nil
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.closed
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.mode
}

// Filter returns the current category filter.
func (s *Session) Filter() items.Category {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.filter
}

// SelectMode switches between buying and selling. Changing mode clears the
// pending transaction, since its quantities were clamped against the other
// mode's availability.
func (s *Session) SelectMode(m Mode) {
	s.lockOpen("SelectMode")
	if s.mode != m {
		s.mode = m
		clear(s.pending)
	}
	s.shop.mu.Unlock()

	s.shop.notify(EventMode, s.id)
}

// SelectFilter sets the category shown by FilteredItems. CategoryNone shows
// everything.
func (s *Session) SelectFilter(c items.Category) {
	s.lockOpen("SelectFilter")
	s.filter = c
	s.shop.mu.Unlock()

	s.shop.notify(EventFilter, s.id)
}

// Items returns every item with positive availability, in catalog order.
func (s *Session) Items() []ShopItem {
	s.lockOpen("Items")
	defer s.shop.mu.Unlock()
	return s.itemsLocked()
}

// FilteredItems returns Items restricted to the current category filter.
func (s *Session) FilteredItems() []ShopItem {
	s.lockOpen("FilteredItems")
	defer s.shop.mu.Unlock()

	all := s.itemsLocked()
	if s.filter == items.CategoryNone {
		return all
	}
	out := all[:0]
	for _, si := range all {
		if si.Item.Category == s.filter {
			out = append(out, si)
		}
	}
	return out
}

// Quantity returns the pending quantity for item.
func (s *Session) Quantity(item *items.Item) int {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.pending[item]
}

// Pending returns a copy of the pending transaction.
func (s *Session) Pending() map[*items.Item]int {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	out := make(map[*items.Item]int, len(s.pending))
	for it, q := range s.pending {
		out[it] = q
	}
	return out
}

// AddToTransaction adjusts the pending quantity of item by delta. The result
// is clamped to the item's live availability and dropped when it reaches
// zero or below. Out-of-range requests are not errors. Subscribers are
// notified after every call.
func (s *Session) AddToTransaction(item *items.Item, delta int) {
	s.lockOpen("AddToTransaction")
	s.addLocked(item, delta)
	s.shop.mu.Unlock()

	s.shop.notify(EventTransaction, s.id)
}

func (s *Session) addLocked(item *items.Item, delta int) {
	availability := s.availabilitiesLocked()[item]
	current := s.pending[item]

	// Saturate instead of overflowing on huge deltas.
	var q int
	if delta > availability-current {
		q = availability
	} else {
		q = current + delta
	}
	if q <= 0 {
		delete(s.pending, item)
		return
	}
	s.pending[item] = q
}

func (s *Session) availabilitiesLocked() map[*items.Item]int {
	return Availabilities(s.shop.catalog, s.mode, s.shopper.level(), s.shop.ledger, s.shopper.Inventory)
}

func (s *Session) pricesLocked() map[*items.Item]float64 {
	return Prices(s.shop.catalog, s.mode, s.shopper.level(), s.shopper.barterStat())
}

func (s *Session) itemsLocked() []ShopItem {
	prices := s.pricesLocked()
	avail := s.availabilitiesLocked()

	var out []ShopItem
	for _, it := range s.shop.catalog.visibleItems(s.shopper.level()) {
		if avail[it] <= 0 {
			continue
		}
		out = append(out, ShopItem{
			Item:         it,
			Availability: avail[it],
			Price:        prices[it],
			Quantity:     s.pending[it],
		})
	}
	return out
}

// transactableLocked lists pending items the shopper can still see and the
// shop can still supply, in catalog order. Entries hidden by a level drop or
// sold out since they were added stay pending but are not transacted.
func (s *Session) transactableLocked() []*items.Item {
	avail := s.availabilitiesLocked()
	out := make([]*items.Item, 0, len(s.pending))
	for _, it := range s.shop.catalog.visibleItems(s.shopper.level()) {
		if s.pending[it] > 0 && avail[it] > 0 {
			out = append(out, it)
		}
	}
	return out
}
