// Package shopper provides the reference collaborators a shop session works
// against: a purse, a slot inventory, and base stats.
package shopper

import "sync"

// Purse holds a currency balance in crowns.
type Purse struct {
	mu      sync.Mutex
	balance float64
}

// NewPurse creates a purse with a starting balance.
func NewPurse(balance float64) *Purse {
	return &Purse{balance: balance}
}

// Balance returns the current balance.
func (p *Purse) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// UpdateBalance adds delta (which may be negative).
func (p *Purse) UpdateBalance(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance += delta
}
