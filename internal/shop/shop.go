package shop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/tradepost/internal/items"
)

var (
	// ErrShopBusy is returned by Begin while another session is open.
	ErrShopBusy = errors.New("shop already has an active shopper")
	// ErrIncompleteShopper is returned by Begin when the purse or inventory is missing.
	ErrIncompleteShopper = errors.New("shopper needs a purse and an inventory")
)

// EventKind says which mutation fired a change notification.
type EventKind uint8

const (
	EventTransaction EventKind = iota
	EventCommit
	EventMode
	EventFilter
	EventRestore
)

func (k EventKind) String() string {
	switch k {
	case EventTransaction:
		return "transaction"
	case EventCommit:
		return "commit"
	case EventMode:
		return "mode"
	case EventFilter:
		return "filter"
	case EventRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a mutation completes.
type Event struct {
	Kind      EventKind
	Shop      string
	SessionID string // Empty for shop-level events
}

type subscriber struct {
	id int
	fn func(Event)
}

// Shop owns a catalog and its stock-sold ledger and admits one shopper
// session at a time. Every ledger, pending-transaction, purse, and inventory
// mutation made through a session runs under mu.
type Shop struct {
	catalog *Catalog

	mu     sync.Mutex
	ledger Ledger
	active *Session

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

// New creates a shop for a validated catalog.
func New(c *Catalog) (*Shop, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Shop{
		catalog: c,
		ledger:  make(Ledger),
	}, nil
}

// Name returns the catalog name.
func (s *Shop) Name() string { return s.catalog.Name }

// Catalog returns the shop's static configuration.
func (s *Shop) Catalog() *Catalog { return s.catalog }

// Ledger returns a copy of the stock-sold ledger.
func (s *Shop) Ledger() Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

// Active returns the open session, or nil.
func (s *Shop) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Begin opens a session for shopper. Only one session may be open at a time.
func (s *Shop) Begin(shopper Shopper) (*Session, error) {
	if shopper.Purse == nil || shopper.Inventory == nil {
		return nil, fmt.Errorf("begin %s: %w", s.Name(), ErrIncompleteShopper)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, fmt.Errorf("begin %s: %w", s.Name(), ErrShopBusy)
	}

	sess := &Session{
		id:      uuid.NewString(),
		shop:    s,
		shopper: shopper,
		mode:    ModeBuying,
		pending: make(map[*items.Item]int),
	}
	s.active = sess
	slog.Debug("shop session opened", "shop", s.Name(), "session", sess.id, "shopper", shopper.ID)
	return sess, nil
}

// Subscribe registers fn for change notifications. Notifications are
// delivered synchronously, in subscription order, after the lock protecting
// the mutation is released. The returned func removes the subscription.
func (s *Shop) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Shop) notify(kind EventKind, sessionID string) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	ev := Event{Kind: kind, Shop: s.Name(), SessionID: sessionID}
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// CaptureState returns the ledger as item ID → net units sold.
func (s *Shop) CaptureState() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Capture()
}

// RestoreState replaces the ledger wholesale. Unknown IDs are logged and
// skipped without stopping the restore; they come back as a joined error
// wrapping items.ErrUnknownItem.
func (s *Shop) RestoreState(state map[string]int, reg Resolver) error {
	ledger, err := RestoreLedger(s.Name(), state, reg)

	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()

	s.notify(EventRestore, "")
	return err
}
