// Package persistence provides SQLite-based storage for shop ledgers,
// shoppers, and the commit audit log.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tradepost/internal/shop"
	"github.com/talgya/tradepost/internal/shopper"
)

// DB wraps a SQLite connection for tradepost state.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shop_stock (
		shop TEXT NOT NULL,
		item_id TEXT NOT NULL,
		net_sold INTEGER NOT NULL,
		PRIMARY KEY (shop, item_id)
	);

	CREATE TABLE IF NOT EXISTS shoppers (
		id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		shop TEXT NOT NULL,
		session_id TEXT NOT NULL,
		shopper_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		at TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		balance_delta REAL NOT NULL,
		units_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_shop ON receipts(shop);
	CREATE INDEX IF NOT EXISTS idx_receipts_shopper ON receipts(shopper_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveShopStock writes every shop's ledger (full replace). The map is keyed
// by shop name, then item ID.
func (db *DB) SaveShopStock(stock map[string]map[string]int) error {
	return db.inTx(func(tx *sqlx.Tx) error { return saveShopStock(tx, stock) })
}

// inTx runs fn in a transaction and commits only if fn succeeds.
func (db *DB) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func saveShopStock(tx *sqlx.Tx, stock map[string]map[string]int) error {
	if _, err := tx.Exec("DELETE FROM shop_stock"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO shop_stock (shop, item_id, net_sold) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for shopName, ledger := range stock {
		for itemID, netSold := range ledger {
			if _, err := stmt.Exec(shopName, itemID, netSold); err != nil {
				return fmt.Errorf("insert stock %s/%s: %w", shopName, itemID, err)
			}
		}
	}
	return nil
}

type stockRow struct {
	Shop    string `db:"shop"`
	ItemID  string `db:"item_id"`
	NetSold int    `db:"net_sold"`
}

// LoadShopStock reads every saved ledger, keyed by shop name.
func (db *DB) LoadShopStock() (map[string]map[string]int, error) {
	var rows []stockRow
	if err := db.conn.Select(&rows, "SELECT shop, item_id, net_sold FROM shop_stock"); err != nil {
		return nil, err
	}

	out := make(map[string]map[string]int)
	for _, r := range rows {
		if out[r.Shop] == nil {
			out[r.Shop] = make(map[string]int)
		}
		out[r.Shop][r.ItemID] = r.NetSold
	}
	return out, nil
}

// SaveShoppers writes all shoppers to the database (full replace).
func (db *DB) SaveShoppers(states []shopper.State) error {
	return db.inTx(func(tx *sqlx.Tx) error { return saveShoppers(tx, states) })
}

func saveShoppers(tx *sqlx.Tx, states []shopper.State) error {
	if _, err := tx.Exec("DELETE FROM shoppers"); err != nil {
		return err
	}

	for _, st := range states {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode shopper %s: %w", st.ID, err)
		}
		if _, err := tx.Exec("INSERT INTO shoppers (id, state_json) VALUES (?, ?)", st.ID, string(data)); err != nil {
			return fmt.Errorf("insert shopper %s: %w", st.ID, err)
		}
	}
	return nil
}

// LoadShoppers reads all saved shoppers, ordered by ID.
func (db *DB) LoadShoppers() ([]shopper.State, error) {
	var blobs []string
	if err := db.conn.Select(&blobs, "SELECT state_json FROM shoppers ORDER BY id"); err != nil {
		return nil, err
	}

	states := make([]shopper.State, 0, len(blobs))
	for _, b := range blobs {
		var st shopper.State
		if err := json.Unmarshal([]byte(b), &st); err != nil {
			return nil, fmt.Errorf("decode shopper: %w", err)
		}
		states = append(states, st)
	}
	return states, nil
}

// UnitRecord is the stored form of one unit in a receipt.
type UnitRecord struct {
	ItemID string  `json:"item_id"`
	Price  float64 `json:"price"`
	OK     bool    `json:"ok"`
	Reason string  `json:"reason,omitempty"`
}

// ReceiptRecord is a commit as read back from the audit log.
type ReceiptRecord struct {
	ID           string       `db:"id" json:"id"`
	Shop         string       `db:"shop" json:"shop"`
	SessionID    string       `db:"session_id" json:"session_id"`
	ShopperID    string       `db:"shopper_id" json:"shopper_id"`
	Mode         string       `db:"mode" json:"mode"`
	At           string       `db:"at" json:"at"`
	Succeeded    int          `db:"succeeded" json:"succeeded"`
	Failed       int          `db:"failed" json:"failed"`
	BalanceDelta float64      `db:"balance_delta" json:"balance_delta"`
	UnitsJSON    string       `db:"units_json" json:"-"`
	Units        []UnitRecord `db:"-" json:"units"`
}

// RecordReceipt appends a commit to the audit log.
func (db *DB) RecordReceipt(r shop.Receipt) error {
	units := make([]UnitRecord, 0, len(r.Units))
	for _, u := range r.Units {
		units = append(units, UnitRecord{ItemID: u.Item.ID, Price: u.Price, OK: u.OK, Reason: u.Reason})
	}
	unitsJSON, err := json.Marshal(units)
	if err != nil {
		return fmt.Errorf("encode units: %w", err)
	}

	_, err = db.conn.Exec(`INSERT INTO receipts
		(id, shop, session_id, shopper_id, mode, at, succeeded, failed, balance_delta, units_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Shop, r.SessionID, r.ShopperID, r.Mode.String(),
		r.At.UTC().Format(time.RFC3339Nano), r.Succeeded, r.Failed, r.BalanceDelta, string(unitsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert receipt %s: %w", r.ID, err)
	}
	return nil
}

// RecentReceipts returns up to limit receipts, newest first. An empty shop
// matches every shop.
func (db *DB) RecentReceipts(shopName string, limit int) ([]ReceiptRecord, error) {
	var records []ReceiptRecord
	query := `SELECT id, shop, session_id, shopper_id, mode, at, succeeded, failed, balance_delta, units_json
		FROM receipts WHERE (? = '' OR shop = ?) ORDER BY rowid DESC LIMIT ?`
	if err := db.conn.Select(&records, query, shopName, shopName, limit); err != nil {
		return nil, err
	}

	for i := range records {
		if err := json.Unmarshal([]byte(records[i].UnitsJSON), &records[i].Units); err != nil {
			return nil, fmt.Errorf("decode receipt %s: %w", records[i].ID, err)
		}
	}
	return records, nil
}

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

func saveMeta(e sqlx.Execer, key, value string) error {
	_, err := e.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a full save has ever completed.
func (db *DB) HasState() bool {
	_, err := db.GetMeta("saved_at")
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		slog.Warn("checking saved state", "error", err)
		return false
	}
	return true
}

// Snapshot is everything a full save writes.
type Snapshot struct {
	Stock    map[string]map[string]int
	Shoppers []shopper.State
	Tick     uint64
}

// SaveSnapshot performs a full save of shop ledgers and shoppers in one
// transaction. On error nothing from the snapshot is written.
func (db *DB) SaveSnapshot(s Snapshot) error {
	slog.Info("saving tradepost state", "shops", len(s.Stock), "shoppers", len(s.Shoppers))

	err := db.inTx(func(tx *sqlx.Tx) error {
		if err := saveShopStock(tx, s.Stock); err != nil {
			return fmt.Errorf("save shop stock: %w", err)
		}
		if err := saveShoppers(tx, s.Shoppers); err != nil {
			return fmt.Errorf("save shoppers: %w", err)
		}
		if err := saveMeta(tx, "last_tick", fmt.Sprintf("%d", s.Tick)); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
		if err := saveMeta(tx, "saved_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("tradepost state saved")
	return nil
}
