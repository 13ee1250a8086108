// Package api provides the HTTP API for shopping sessions.
// GET endpoints are public. Session endpoints act on behalf of the shopper
// who opened the session. Admin POST endpoints require a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tradepost/internal/engine"
	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/persistence"
	"github.com/talgya/tradepost/internal/shop"
	"github.com/talgya/tradepost/internal/town"
)

// Server serves the town over HTTP.
type Server struct {
	Town     *town.Town
	Eng      *engine.Engine
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.

	// Commits allowed per client IP per minute (default 60).
	CommitRate int

	// Extra allowed CORS origins. Localhost dev servers are always allowed.
	CORSOrigins []string
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Handler builds the routed handler, CORS included.
func (s *Server) Handler() http.Handler {
	rate := s.CommitRate
	if rate <= 0 {
		rate = 60
	}
	commitLimiter := NewRateLimiter(rate, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/shops", s.handleShops)
	mux.HandleFunc("GET /api/v1/shops/{name}/receipts", s.handleReceipts)
	mux.HandleFunc("GET /api/v1/shoppers/{id}", s.handleShopper)

	// Session endpoints.
	mux.HandleFunc("POST /api/v1/shops/{name}/sessions", s.handleBegin)
	mux.HandleFunc("GET /api/v1/sessions/{id}/items", s.handleItems)
	mux.HandleFunc("POST /api/v1/sessions/{id}/mode", s.handleMode)
	mux.HandleFunc("POST /api/v1/sessions/{id}/filter", s.handleFilter)
	mux.HandleFunc("POST /api/v1/sessions/{id}/transaction", s.handleTransaction)
	mux.HandleFunc("POST /api/v1/sessions/{id}/commit", RateLimitMiddleware(commitLimiter, s.handleCommit))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleClose)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/shoppers", s.adminOnly(s.handleAddShopper))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux, s.CORSOrigins)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler, origins []string) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no TRADEPOST_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":          "Tradepost",
		"shops":         len(s.Town.Shops()),
		"shoppers":      len(s.Town.ShopperIDs()),
		"open_sessions": s.Town.OpenSessions(),
		"stats":         s.Town.Stats(),
		"unsaved":       s.Town.Dirty(),
	}
	if s.Eng != nil {
		status["tick"] = s.Eng.CurrentTick()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleShops(w http.ResponseWriter, r *http.Request) {
	type shopSummary struct {
		Name              string  `json:"name"`
		SellingPercentage float64 `json:"selling_percentage"`
		MaxBarterDiscount float64 `json:"max_barter_discount"`
		CatalogSize       int     `json:"catalog_size"`
		Occupied          bool    `json:"occupied"`
	}

	shops := s.Town.Shops()
	out := make([]shopSummary, 0, len(shops))
	for _, sh := range shops {
		c := sh.Catalog()
		out = append(out, shopSummary{
			Name:              sh.Name(),
			SellingPercentage: c.SellingPercentage,
			MaxBarterDiscount: c.MaxBarterDiscount,
			CatalogSize:       len(c.Items()),
			Occupied:          sh.Active() != nil,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := s.Town.Shop(name); err != nil {
		writeError(w, err)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	receipts, err := s.DB.RecentReceipts(name, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipts)
}

type slotView struct {
	Slot   int    `json:"slot"`
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

func (s *Server) handleShopper(w http.ResponseWriter, r *http.Request) {
	p, err := s.Town.Shopper(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	slots := []slotView{}
	for i := 0; i < p.Inventory.Size(); i++ {
		it := p.Inventory.ItemInSlot(i)
		if it == nil {
			continue
		}
		slots = append(slots, slotView{Slot: i, ItemID: it.ID, Name: it.DisplayName, Number: p.Inventory.NumberInSlot(i)})
	}

	balance := p.Purse.Balance()
	writeJSON(w, map[string]any{
		"id":              p.ID,
		"balance":         balance,
		"balance_display": humanize.CommafWithDigits(balance, 2),
		"level":           p.Stats.Level(),
		"barter":          p.Stats.Stat(shop.StatBuyingDiscountPercentage),
		"inventory_size":  p.Inventory.Size(),
		"free_slots":      p.Inventory.FreeSlots(),
		"slots":           slots,
	})
}

func (s *Server) handleAddShopper(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	p, err := s.Town.AddShopper(req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"id": p.ID, "balance": p.Purse.Balance()})
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShopperID string `json:"shopper_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.Town.Begin(r.PathValue("name"), req.ShopperID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID(),
		"shop":       sess.Shop().Name(),
		"mode":       sess.Mode().String(),
	})
}

type itemView struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Icon         string  `json:"icon,omitempty"`
	Category     string  `json:"category"`
	Availability int     `json:"availability"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
}

type sessionView struct {
	SessionID       string     `json:"session_id"`
	Shop            string     `json:"shop"`
	ShopperID       string     `json:"shopper_id"`
	Mode            string     `json:"mode"`
	Filter          string     `json:"filter"`
	Items           []itemView `json:"items"`
	Total           float64    `json:"total"`
	Empty           bool       `json:"empty"`
	SufficientFunds bool       `json:"sufficient_funds"`
	InventorySpace  bool       `json:"inventory_space"`
	CanTransact     bool       `json:"can_transact"`
	Balance         float64    `json:"balance"`
}

func buildSessionView(sess *shop.Session) sessionView {
	v := sessionView{
		SessionID:       sess.ID(),
		Shop:            sess.Shop().Name(),
		ShopperID:       sess.Shopper().ID,
		Mode:            sess.Mode().String(),
		Filter:          sess.Filter().String(),
		Items:           []itemView{},
		Total:           sess.TransactionTotal(),
		Empty:           sess.IsTransactionEmpty(),
		SufficientFunds: sess.HasSufficientFunds(),
		InventorySpace:  sess.HasInventorySpace(),
		CanTransact:     sess.CanTransact(),
		Balance:         sess.Shopper().Purse.Balance(),
	}
	for _, si := range sess.FilteredItems() {
		v.Items = append(v.Items, itemView{
			ID:           si.Item.ID,
			Name:         si.Name(),
			Icon:         si.Icon(),
			Category:     si.Category().String(),
			Availability: si.Availability,
			Price:        si.Price,
			Quantity:     si.Quantity,
			Subtotal:     si.Subtotal(),
		})
	}
	return v
}

// respondSession runs fn against the session and replies with its view.
func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, fn func(*shop.Session) error) {
	var view sessionView
	err := s.Town.WithSession(r.PathValue("id"), func(sess *shop.Session) error {
		if fn != nil {
			if err := fn(sess); err != nil {
				return err
			}
		}
		view = buildSessionView(sess)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, nil)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, ok := shop.ParseMode(req.Mode)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
		return
	}
	s.respondSession(w, r, func(sess *shop.Session) error {
		sess.SelectMode(mode)
		return nil
	})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, ok := items.ParseCategory(req.Category)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown category %q", req.Category), http.StatusBadRequest)
		return
	}
	s.respondSession(w, r, func(sess *shop.Session) error {
		sess.SelectFilter(cat)
		return nil
	})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"item_id"`
		Delta  int    `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	it, ok := s.Town.Registry.ResolveByID(req.ItemID)
	if !ok {
		writeError(w, fmt.Errorf("%w %q", items.ErrUnknownItem, req.ItemID))
		return
	}
	s.respondSession(w, r, func(sess *shop.Session) error {
		sess.AddToTransaction(it, req.Delta)
		return nil
	})
}

type unitView struct {
	ItemID string  `json:"item_id"`
	Price  float64 `json:"price"`
	OK     bool    `json:"ok"`
	Reason string  `json:"reason,omitempty"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.Town.Commit(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	units := make([]unitView, 0, len(receipt.Units))
	for _, u := range receipt.Units {
		units = append(units, unitView{ItemID: u.Item.ID, Price: u.Price, OK: u.OK, Reason: u.Reason})
	}
	writeJSON(w, map[string]any{
		"receipt_id":    receipt.ID,
		"shop":          receipt.Shop,
		"session_id":    receipt.SessionID,
		"mode":          receipt.Mode.String(),
		"at":            receipt.At.Format(time.RFC3339),
		"succeeded":     receipt.Succeeded,
		"failed":        receipt.Failed,
		"balance_delta": receipt.BalanceDelta,
		"units":         units,
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.Town.CloseSession(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var tick uint64
	if s.Eng != nil {
		tick = s.Eng.CurrentTick()
	}
	if err := s.Town.Save(s.DB, tick); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    tick,
		"message": "snapshot saved",
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, items.ErrUnknownItem),
		errors.Is(err, town.ErrUnknownShop),
		errors.Is(err, town.ErrUnknownSession),
		errors.Is(err, town.ErrUnknownShopper):
		return http.StatusNotFound
	case errors.Is(err, shop.ErrShopBusy),
		errors.Is(err, town.ErrCannotTransact),
		errors.Is(err, town.ErrShopperExists),
		errors.Is(err, town.ErrShopperBusy):
		return http.StatusConflict
	case errors.Is(err, shop.ErrIncompleteShopper):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSONStatus(w, code, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
