// Package town ties the item registry, shops, shoppers, and open sessions
// together and moves them in and out of storage.
package town

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/persistence"
	"github.com/talgya/tradepost/internal/shop"
	"github.com/talgya/tradepost/internal/shopper"
)

var (
	ErrUnknownShop    = errors.New("unknown shop")
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownShopper = errors.New("unknown shopper")
	ErrShopperExists  = errors.New("shopper already exists")
	ErrShopperBusy    = errors.New("shopper already has an open session")
	ErrCannotTransact = errors.New("transaction cannot be committed")
)

// Store is the storage a town saves to and loads from.
type Store interface {
	LoadShopStock() (map[string]map[string]int, error)
	LoadShoppers() ([]shopper.State, error)
	SaveSnapshot(persistence.Snapshot) error
}

// ReceiptRecorder receives every committed receipt.
type ReceiptRecorder interface {
	RecordReceipt(shop.Receipt) error
}

// Stats tracks aggregate activity since startup.
type Stats struct {
	Commits      int     `json:"commits"`
	UnitsSold    int     `json:"units_sold"`
	UnitsBought  int     `json:"units_bought"`
	UnitsSkipped int     `json:"units_skipped"`
	Turnover     float64 `json:"turnover"`
}

// Town holds every shop and shopper the server knows about.
type Town struct {
	Registry *items.Registry
	Audit    ReceiptRecorder // Optional

	StartingBalance float64 // Purse of shoppers created by AddShopper
	InventorySize   int     // Slots of shoppers created by AddShopper

	mu        sync.RWMutex
	shops     []*shop.Shop
	shopIndex map[string]*shop.Shop
	shoppers  map[string]*shopper.Player
	sessions  map[string]*openSession
	inSession map[string]string // shopper ID → session ID
	stats     Stats

	dirty atomic.Bool
	now   func() time.Time
}

// openSession is a session plus the last time a request used it.
type openSession struct {
	sess    *shop.Session
	touched atomic.Int64 // Unix nanoseconds
}

func (t *Town) touch(o *openSession) {
	o.touched.Store(t.now().UnixNano())
}

// New creates a town with one shop per catalog. Catalog names must be unique.
func New(reg *items.Registry, catalogs []*shop.Catalog) (*Town, error) {
	t := &Town{
		Registry:        reg,
		StartingBalance: 100,
		InventorySize:   16,
		shopIndex:       make(map[string]*shop.Shop, len(catalogs)),
		shoppers:        make(map[string]*shopper.Player),
		sessions:        make(map[string]*openSession),
		inSession:       make(map[string]string),
		now:             time.Now,
	}

	for _, c := range catalogs {
		s, err := shop.New(c)
		if err != nil {
			return nil, fmt.Errorf("shop %q: %w", c.Name, err)
		}
		if _, dup := t.shopIndex[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate shop %q", s.Name())
		}
		s.Subscribe(t.onShopEvent)
		t.shops = append(t.shops, s)
		t.shopIndex[s.Name()] = s
	}
	return t, nil
}

// onShopEvent marks the town as needing a save whenever persisted state moves.
func (t *Town) onShopEvent(ev shop.Event) {
	if ev.Kind == shop.EventCommit {
		t.dirty.Store(true)
	}
}

// Dirty reports whether anything persisted has changed since the last save.
func (t *Town) Dirty() bool { return t.dirty.Load() }

// Shops returns every shop in catalog order.
func (t *Town) Shops() []*shop.Shop {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*shop.Shop, len(t.shops))
	copy(out, t.shops)
	return out
}

// Shop looks up a shop by name.
func (t *Town) Shop(name string) (*shop.Shop, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.shopIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownShop, name)
	}
	return s, nil
}

// AddShopper registers a new shopper with the town's starting purse and
// inventory size.
func (t *Town) AddShopper(id string) (*shopper.Player, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrUnknownShopper)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.shoppers[id]; ok {
		return nil, fmt.Errorf("%w: %q", ErrShopperExists, id)
	}
	p := shopper.New(id, t.StartingBalance, t.InventorySize, 0)
	t.shoppers[id] = p
	t.dirty.Store(true)
	slog.Info("shopper joined", "shopper", id, "balance", t.StartingBalance)
	return p, nil
}

// PutShopper adds or replaces a shopper.
func (t *Town) PutShopper(p *shopper.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shoppers[p.ID] = p
	t.dirty.Store(true)
}

// Shopper looks up a shopper by ID.
func (t *Town) Shopper(id string) (*shopper.Player, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.shoppers[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownShopper, id)
	}
	return p, nil
}

// ShopperIDs returns every shopper ID, sorted.
func (t *Town) ShopperIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.shoppers))
	for id := range t.shoppers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Begin opens a session for shopperID at shopName. shop.ErrShopBusy is
// returned when someone else is already inside, and ErrShopperBusy when the
// shopper is still inside another shop.
func (t *Town) Begin(shopName, shopperID string) (*shop.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.shopIndex[shopName]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownShop, shopName)
	}
	p, ok := t.shoppers[shopperID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownShopper, shopperID)
	}
	if id, busy := t.inSession[shopperID]; busy {
		return nil, fmt.Errorf("%w: %q in session %s", ErrShopperBusy, shopperID, id)
	}

	sess, err := s.Begin(p.Shopper())
	if err != nil {
		return nil, err
	}
	o := &openSession{sess: sess}
	t.touch(o)
	t.sessions[sess.ID()] = o
	t.inSession[shopperID] = sess.ID()
	return sess, nil
}

// Session looks up an open session.
func (t *Town) Session(id string) (*shop.Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSession, id)
	}
	return o.sess, nil
}

// OpenSessions returns the number of open sessions.
func (t *Town) OpenSessions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// CloseSession closes and forgets a session.
func (t *Town) CloseSession(id string) error {
	t.mu.Lock()
	o, ok := t.sessions[id]
	if ok {
		t.forgetLocked(id, o)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownSession, id)
	}
	o.sess.Close()
	slog.Debug("shop session closed", "shop", o.sess.Shop().Name(), "session", id)
	return nil
}

func (t *Town) forgetLocked(id string, o *openSession) {
	delete(t.sessions, id)
	if t.inSession[o.sess.Shopper().ID] == id {
		delete(t.inSession, o.sess.Shopper().ID)
	}
}

// ReapIdle closes every session no request has used for longer than
// maxIdle and returns their IDs, sorted. A non-positive maxIdle reaps
// nothing.
func (t *Town) ReapIdle(maxIdle time.Duration) []string {
	if maxIdle <= 0 {
		return nil
	}
	cutoff := t.now().Add(-maxIdle).UnixNano()

	var idle []*openSession
	var ids []string
	t.mu.Lock()
	for id, o := range t.sessions {
		if o.touched.Load() < cutoff {
			t.forgetLocked(id, o)
			idle = append(idle, o)
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	for _, o := range idle {
		o.sess.Close()
		slog.Info("idle session reaped", "shop", o.sess.Shop().Name(), "session", o.sess.ID(), "shopper", o.sess.Shopper().ID)
	}
	sort.Strings(ids)
	return ids
}

// WithSession runs fn against an open session and marks it as used. The
// session cannot be closed while fn runs. fn must not call back into the
// town's write paths.
func (t *Town) WithSession(id string, fn func(*shop.Session) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.sessions[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownSession, id)
	}
	t.touch(o)
	return fn(o.sess)
}

// Commit commits a session's pending transaction after checking it can go
// through. The receipt is passed to Audit when one is set; an audit failure
// is logged and does not undo the commit.
func (t *Town) Commit(sessionID string) (shop.Receipt, error) {
	var r shop.Receipt
	err := t.WithSession(sessionID, func(sess *shop.Session) error {
		if !sess.CanTransact() {
			return fmt.Errorf("session %s: %w", sessionID, ErrCannotTransact)
		}
		r = sess.Commit()
		return nil
	})
	if err != nil {
		return shop.Receipt{}, err
	}

	t.mu.Lock()
	t.stats.Commits++
	t.stats.UnitsSkipped += r.Failed
	if r.Mode == shop.ModeSelling {
		t.stats.UnitsBought += r.Succeeded
	} else {
		t.stats.UnitsSold += r.Succeeded
	}
	if r.BalanceDelta < 0 {
		t.stats.Turnover -= r.BalanceDelta
	} else {
		t.stats.Turnover += r.BalanceDelta
	}
	t.mu.Unlock()

	if t.Audit != nil {
		if err := t.Audit.RecordReceipt(r); err != nil {
			slog.Error("recording receipt failed", "receipt", r.ID, "error", err)
		}
	}
	return r, nil
}

// Stats returns activity counters since startup.
func (t *Town) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Snapshot captures every ledger and shopper for saving. It holds the write
// lock, so no commit runs between capturing ledgers and purses.
func (t *Town) Snapshot(tick uint64) persistence.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := persistence.Snapshot{
		Stock: make(map[string]map[string]int, len(t.shops)),
		Tick:  tick,
	}
	for _, s := range t.shops {
		snap.Stock[s.Name()] = s.CaptureState()
	}

	ids := make([]string, 0, len(t.shoppers))
	for id := range t.shoppers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap.Shoppers = append(snap.Shoppers, t.shoppers[id].State())
	}
	return snap
}

// Save writes a snapshot to store and clears the dirty flag.
func (t *Town) Save(store Store, tick uint64) error {
	t.dirty.Store(false)
	if err := store.SaveSnapshot(t.Snapshot(tick)); err != nil {
		t.dirty.Store(true)
		return err
	}
	return nil
}

// Load restores ledgers and shoppers from store. Ledgers for shops that no
// longer exist are skipped with a warning. Unknown item IDs do not stop the
// load; they come back as a joined error wrapping items.ErrUnknownItem.
func (t *Town) Load(store Store) error {
	stock, err := store.LoadShopStock()
	if err != nil {
		return fmt.Errorf("load shop stock: %w", err)
	}
	states, err := store.LoadShoppers()
	if err != nil {
		return fmt.Errorf("load shoppers: %w", err)
	}

	var errs []error
	for name, ledger := range stock {
		s, err := t.Shop(name)
		if err != nil {
			slog.Warn("saved ledger for unknown shop skipped", "shop", name)
			continue
		}
		if err := s.RestoreState(ledger, t.Registry); err != nil {
			errs = append(errs, err)
		}
	}

	t.mu.Lock()
	for _, st := range states {
		p, err := shopper.FromState(st, t.Registry)
		if err != nil {
			slog.Warn("shopper restored with missing items", "shopper", st.ID, "error", err)
			errs = append(errs, err)
		}
		t.shoppers[p.ID] = p
	}
	t.mu.Unlock()

	t.dirty.Store(false)
	slog.Info("town restored", "shops", len(stock), "shoppers", len(states))
	return errors.Join(errs...)
}
