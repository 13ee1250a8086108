package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/talgya/tradepost/internal/items"
	"github.com/talgya/tradepost/internal/persistence"
	"github.com/talgya/tradepost/internal/shop"
	"github.com/talgya/tradepost/internal/town"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	reg := items.DefaultRegistry()
	catalogs := []*shop.Catalog{
		{
			Name:              "Apothecary",
			SellingPercentage: 80,
			MaxBarterDiscount: 80,
			Stock: []shop.StockConfig{
				{Item: reg.MustResolve("potion-health"), InitialStock: 5},
				{Item: reg.MustResolve("torch"), InitialStock: 10},
			},
		},
	}
	tw, err := town.New(reg, catalogs)
	if err != nil {
		t.Fatal(err)
	}
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	tw.Audit = db

	if _, err := tw.AddShopper("bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.AddShopper("alice"); err != nil {
		t.Fatal(err)
	}

	s := &Server{Town: tw, DB: db, AdminKey: "secret", CommitRate: 2, CORSOrigins: []string{" https://shop.example.com "}}
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:1234"
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func beginSession(t *testing.T, h http.Handler, shopperID string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/shops/Apothecary/sessions", map[string]string{"shopper_id": shopperID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("begin: %d %s", rec.Code, rec.Body.String())
	}
	return decode[map[string]any](t, rec)["session_id"].(string)
}

func TestShoppingFlow(t *testing.T) {
	_, h := newTestServer(t)
	id := beginSession(t, h, "bob")
	base := "/api/v1/sessions/" + id

	rec := do(t, h, http.MethodGet, base+"/items", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("items: %d", rec.Code)
	}
	view := decode[sessionView](t, rec)
	if view.Mode != "buying" || len(view.Items) != 2 || !view.Empty || view.CanTransact {
		t.Fatalf("unexpected initial view %+v", view)
	}

	rec = do(t, h, http.MethodPost, base+"/transaction", map[string]any{"item_id": "potion-health", "delta": 100})
	view = decode[sessionView](t, rec)
	if view.Total != 50 || !view.CanTransact || view.Items[0].Quantity != 5 {
		t.Fatalf("clamp not applied: %+v", view)
	}

	rec = do(t, h, http.MethodPost, base+"/filter", map[string]string{"category": "misc"})
	view = decode[sessionView](t, rec)
	if view.Filter != "misc" || len(view.Items) != 1 || view.Items[0].ID != "torch" {
		t.Fatalf("filter not applied: %+v", view)
	}

	rec = do(t, h, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: %d %s", rec.Code, rec.Body.String())
	}
	receipt := decode[map[string]any](t, rec)
	if receipt["succeeded"].(float64) != 5 || receipt["balance_delta"].(float64) != -50 {
		t.Fatalf("unexpected receipt %v", receipt)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/shoppers/bob", nil)
	shopper := decode[map[string]any](t, rec)
	if shopper["balance"].(float64) != 50 || shopper["balance_display"] != "50" {
		t.Fatalf("unexpected shopper %v", shopper)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/shops/Apothecary/receipts", nil)
	receipts := decode[[]persistence.ReceiptRecord](t, rec)
	if len(receipts) != 1 || receipts[0].Succeeded != 5 {
		t.Fatalf("audit log: %+v", receipts)
	}

	rec = do(t, h, http.MethodPost, base+"/mode", map[string]string{"mode": "selling"})
	view = decode[sessionView](t, rec)
	if view.Mode != "selling" || len(view.Items) != 0 {
		t.Fatalf("selling view should show nothing under the misc filter: %+v", view)
	}

	rec = do(t, h, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, base+"/items", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("closed session should 404, got %d", rec.Code)
	}
}

func TestErrorStatuses(t *testing.T) {
	_, h := newTestServer(t)
	id := beginSession(t, h, "bob")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"busy shop", http.MethodPost, "/api/v1/shops/Apothecary/sessions", map[string]string{"shopper_id": "alice"}, http.StatusConflict},
		{"shopper already inside", http.MethodPost, "/api/v1/shops/Apothecary/sessions", map[string]string{"shopper_id": "bob"}, http.StatusConflict},
		{"unknown shop", http.MethodPost, "/api/v1/shops/Nowhere/sessions", map[string]string{"shopper_id": "alice"}, http.StatusNotFound},
		{"unknown shopper", http.MethodGet, "/api/v1/shoppers/ghost", nil, http.StatusNotFound},
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope/items", nil, http.StatusNotFound},
		{"unknown item", http.MethodPost, "/api/v1/sessions/" + id + "/transaction", map[string]any{"item_id": "ghost", "delta": 1}, http.StatusNotFound},
		{"bad mode", http.MethodPost, "/api/v1/sessions/" + id + "/mode", map[string]string{"mode": "haggling"}, http.StatusBadRequest},
		{"bad category", http.MethodPost, "/api/v1/sessions/" + id + "/filter", map[string]string{"category": "food"}, http.StatusBadRequest},
		{"empty commit", http.MethodPost, "/api/v1/sessions/" + id + "/commit", nil, http.StatusConflict},
		{"wrong method", http.MethodGet, "/api/v1/sessions/" + id + "/commit", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCommitRateLimited(t *testing.T) {
	_, h := newTestServer(t)
	id := beginSession(t, h, "bob")
	path := "/api/v1/sessions/" + id + "/commit"

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodPost, path, nil); rec.Code != http.StatusConflict {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, path, nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", rec.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	s, h := newTestServer(t)

	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("snapshot without token: %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/snapshot", nil, "Authorization", "Bearer secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body.String())
	}
	if !s.DB.HasState() {
		t.Fatal("snapshot did not reach the database")
	}

	rec = do(t, h, http.MethodPost, "/api/v1/shoppers", map[string]string{"id": "carol"}, "Authorization", "Bearer secret")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add shopper: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/v1/shoppers", map[string]string{"id": "carol"}, "Authorization", "Bearer secret")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate shopper: %d", rec.Code)
	}

	s.AdminKey = ""
	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", nil, "Authorization", "Bearer "); rec.Code != http.StatusForbidden {
		t.Fatalf("disabled admin: %d", rec.Code)
	}
}

func TestStatusAndShops(t *testing.T) {
	_, h := newTestServer(t)
	beginSession(t, h, "bob")

	status := decode[map[string]any](t, do(t, h, http.MethodGet, "/api/v1/status", nil))
	if status["shops"].(float64) != 1 || status["shoppers"].(float64) != 2 || status["open_sessions"].(float64) != 1 {
		t.Fatalf("unexpected status %v", status)
	}

	shops := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/api/v1/shops", nil))
	if len(shops) != 1 || shops[0]["catalog_size"].(float64) != 2 || shops[0]["occupied"] != true {
		t.Fatalf("unexpected shops %v", shops)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodOptions, "/api/v1/status", nil, "Origin", "http://localhost:5173")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}
}

func TestCORSConfiguredOrigins(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/status", nil, "Origin", "https://shop.example.com")
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://shop.example.com" {
		t.Fatalf("configured origin: %d %v", rec.Code, rec.Header())
	}
	rec = do(t, h, http.MethodGet, "/api/v1/status", nil, "Origin", "https://evil.example.com")
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unlisted origin allowed: %v", rec.Header())
	}
}
