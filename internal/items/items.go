// Package items provides item definitions, categories, and the registry that
// resolves persisted item IDs back to definitions.
package items

import (
	"errors"
	"strings"
)

// ErrUnknownItem is returned when an item ID does not resolve in a registry.
var ErrUnknownItem = errors.New("unknown item")

// Category tags an item for shop filtering.
type Category uint8

const (
	CategoryNone Category = iota // No category / no filter
	CategoryWeapon
	CategoryArmor
	CategoryPotion
	CategoryAbility
	CategoryMisc
)

var categoryNames = [...]string{
	CategoryNone:    "none",
	CategoryWeapon:  "weapon",
	CategoryArmor:   "armor",
	CategoryPotion:  "potion",
	CategoryAbility: "ability",
	CategoryMisc:    "misc",
}

// String returns the lowercase category name.
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// ParseCategory converts a name back to a Category. Empty input is CategoryNone.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryNone, true
	}
	for i, name := range categoryNames {
		if name == s {
			return Category(i), true
		}
	}
	return CategoryNone, false
}

// Item is an immutable item definition. Definitions are owned by a Registry
// and compared by pointer, so callers must not copy them into new values.
type Item struct {
	ID          string
	DisplayName string
	Description string
	Icon        string
	Category    Category
	Price       float64 // Base price in crowns
	Stackable   bool
}

// GetID returns the stable persistence ID.
func (it *Item) GetID() string { return it.ID }
