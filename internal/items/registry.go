package items

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Registry maps stable IDs to item definitions.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Item
	order []*Item
}

// NewRegistry creates a registry holding the given definitions.
func NewRegistry(defs ...*Item) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Item, len(defs))}
	for _, it := range defs {
		if err := r.Register(it); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition. IDs must be unique and non-empty.
func (r *Registry) Register(it *Item) error {
	if it == nil || it.ID == "" {
		return fmt.Errorf("register item: empty id")
	}
	if it.Price < 0 {
		return fmt.Errorf("register item %q: negative base price %v", it.ID, it.Price)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[it.ID]; ok {
		return fmt.Errorf("register item %q: duplicate id", it.ID)
	}
	r.byID[it.ID] = it
	r.order = append(r.order, it)
	return nil
}

// ResolveByID returns the definition for id.
func (r *Registry) ResolveByID(id string) (*Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.byID[id]
	return it, ok
}

// MustResolve is ResolveByID for IDs that are known to exist.
func (r *Registry) MustResolve(id string) *Item {
	it, ok := r.ResolveByID(id)
	if !ok {
		panic(fmt.Sprintf("items: %v %q", ErrUnknownItem, id))
	}
	return it
}

// All returns the definitions in registration order.
func (r *Registry) All() []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Item, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IDs returns every registered ID, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type itemFile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stackable   bool    `json:"stackable"`
}

// LoadRegistry reads a JSON array of item definitions from path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes a JSON array of item definitions.
func ParseRegistry(data []byte) (*Registry, error) {
	var entries []itemFile
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}

	reg := &Registry{byID: make(map[string]*Item, len(entries))}
	for _, e := range entries {
		cat, ok := ParseCategory(e.Category)
		if !ok {
			return nil, fmt.Errorf("item %q: unknown category %q", e.ID, e.Category)
		}
		it := &Item{
			ID:          e.ID,
			DisplayName: e.Name,
			Description: e.Description,
			Icon:        e.Icon,
			Category:    cat,
			Price:       e.Price,
			Stackable:   e.Stackable,
		}
		if err := reg.Register(it); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// DefaultRegistry returns the built-in item set used when no items file is
// configured.
func DefaultRegistry() *Registry {
	defs := []*Item{
		{ID: "potion-health", DisplayName: "Health Potion", Icon: "potion_red", Category: CategoryPotion, Price: 10, Stackable: true},
		{ID: "potion-mana", DisplayName: "Mana Potion", Icon: "potion_blue", Category: CategoryPotion, Price: 12, Stackable: true},
		{ID: "sword-iron", DisplayName: "Iron Sword", Icon: "sword_iron", Category: CategoryWeapon, Price: 50},
		{ID: "sword-steel", DisplayName: "Steel Sword", Icon: "sword_steel", Category: CategoryWeapon, Price: 120},
		{ID: "bow-long", DisplayName: "Longbow", Icon: "bow_long", Category: CategoryWeapon, Price: 90},
		{ID: "helm-leather", DisplayName: "Leather Cap", Icon: "helm_leather", Category: CategoryArmor, Price: 25},
		{ID: "shield-oak", DisplayName: "Oak Shield", Icon: "shield_oak", Category: CategoryArmor, Price: 40},
		{ID: "scroll-fireball", DisplayName: "Fireball Scroll", Icon: "scroll_fire", Category: CategoryAbility, Price: 75, Stackable: true},
		{ID: "torch", DisplayName: "Torch", Icon: "torch", Category: CategoryMisc, Price: 2, Stackable: true},
		{ID: "rope", DisplayName: "Rope", Icon: "rope", Category: CategoryMisc, Price: 4, Stackable: true},
	}
	reg, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return reg
}
