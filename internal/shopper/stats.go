package shopper

import (
	"sync"

	"github.com/talgya/tradepost/internal/shop"
)

// BaseStats is a level plus a set of numeric attributes.
type BaseStats struct {
	mu    sync.RWMutex
	level int
	stats map[shop.Stat]float64
}

// NewBaseStats creates stats at the given level with no attributes set.
func NewBaseStats(level int) *BaseStats {
	return &BaseStats{level: level, stats: make(map[shop.Stat]float64)}
}

// Level returns the current level.
func (b *BaseStats) Level() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.level
}

// SetLevel changes the level.
func (b *BaseStats) SetLevel(level int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = level
}

// Stat returns the attribute value, 0 when unset.
func (b *BaseStats) Stat(kind shop.Stat) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats[kind]
}

// SetStat sets an attribute value.
func (b *BaseStats) SetStat(kind shop.Stat, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats[kind] = v
}
