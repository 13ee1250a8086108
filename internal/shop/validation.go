package shop

import "github.com/talgya/tradepost/internal/items"

// IsTransactionEmpty reports whether nothing is pending.
func (s *Session) IsTransactionEmpty() bool {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return len(s.pending) == 0
}

// TransactionTotal is the sum of price × quantity over pending items that are
// still visible and available, using live prices.
func (s *Session) TransactionTotal() float64 {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.totalLocked()
}

// HasSufficientFunds reports whether the purse covers the transaction.
// Always true when selling.
func (s *Session) HasSufficientFunds() bool {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.fundsLocked()
}

// HasInventorySpace reports whether every pending unit fits in the
// shopper's inventory. Always true when selling.
func (s *Session) HasInventorySpace() bool {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	return s.spaceLocked()
}

// CanTransact is true when something in the transaction can still be
// transacted and the transaction is affordable and fits.
func (s *Session) CanTransact() bool {
	s.shop.mu.Lock()
	defer s.shop.mu.Unlock()
	if len(s.transactableLocked()) == 0 {
		return false
	}
	return s.fundsLocked() && s.spaceLocked()
}

func (s *Session) totalLocked() float64 {
	prices := s.pricesLocked()
	total := 0.0
	for _, it := range s.transactableLocked() {
		total += prices[it] * float64(s.pending[it])
	}
	return total
}

func (s *Session) fundsLocked() bool {
	if s.mode == ModeSelling {
		return true
	}
	return s.shopper.Purse.Balance() >= s.totalLocked()
}

func (s *Session) spaceLocked() bool {
	if s.mode == ModeSelling {
		return true
	}
	var flat []*items.Item
	for _, it := range s.transactableLocked() {
		for i := 0; i < s.pending[it]; i++ {
			flat = append(flat, it)
		}
	}
	return s.shopper.Inventory.HasSpaceFor(flat)
}
