package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lta97/junkpool/internal/adapter/assets"
	"github.com/lta97/junkpool/internal/core/domain"
	"github.com/lta97/junkpool/internal/core/market"
	"github.com/lta97/junkpool/internal/core/service"
)

const (
	pool   = domain.Address("pool")
	owner  = "owner"
	seller = "seller"
	buyer  = "buyer"
	classA = "class-a"
)

// Mock CacheRepository
type mockCache struct {
	seen map[string]bool
	mu   sync.Mutex
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// Mock EventJournal
type mockJournal struct {
	events []domain.Event
	mu     sync.Mutex
}

func (m *mockJournal) AppendEvent(ctx context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockJournal) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]domain.Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *assets.Ledger) {
	t.Helper()
	ledger := assets.NewLedger(pool)
	ledger.CreateClass(classA, domain.KindUnique)

	cfg := domain.AuctionConfig{
		FlatPrice:      big.NewInt(1_000),
		MinPrice:       big.NewInt(10_000),
		MaxPrice:       big.NewInt(100_000),
		WindowDuration: 900,
		BundleSize:     2,
		Controller:     domain.Address(owner),
		Owner:          domain.Address(owner),
	}
	m, err := market.NewMarket(cfg, ledger, ledger,
		market.WithTimeSource(func() int64 { return 450 }),
	)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}

	svc := service.NewMarketService(m, &mockCache{seen: make(map[string]bool)}, 100)
	t.Cleanup(svc.Close)
	go func() {
		for range svc.GetEventQueue() {
		}
	}()

	h := NewHTTPHandler(svc, &mockJournal{})
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ledger
}

func postJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := getJSON(t, srv.URL+"/health")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected ok, got %d %v", status, body)
	}
}

func TestQuoteAndPurchaseFlow(t *testing.T) {
	srv, ledger := newTestServer(t)

	// Fund the pool so it can buy.
	status, _ := postJSON(t, srv.URL+"/api/fund", map[string]any{"from": owner, "amount": "1000000"})
	if status != http.StatusOK {
		t.Fatalf("fund: status %d", status)
	}

	// Register the unique class.
	status, _ = postJSON(t, srv.URL+"/api/admin/register", map[string]any{
		"caller":  owner,
		"entries": []map[string]string{{"class": classA, "kind": "unique"}},
	})
	if status != http.StatusOK {
		t.Fatalf("register: status %d", status)
	}

	// Deposit three items; the pool must own them for later transfer.
	for i := 1; i <= 3; i++ {
		ledger.MintUnique(classA, big.NewInt(int64(i)), pool)
		status, body := postJSON(t, srv.URL+"/api/deposit", map[string]any{
			"receipt_id": fmt.Sprintf("r-%d", i),
			"class":      classA,
			"depositor":  seller,
			"pairs":      []map[string]string{{"id": fmt.Sprint(i), "quantity": "1"}},
		})
		if status != http.StatusOK {
			t.Fatalf("deposit %d: status %d %v", i, status, body)
		}
		if body["ack"] != domain.DepositAck {
			t.Fatalf("deposit %d: missing ack, got %v", i, body)
		}
	}

	// Duplicate receipt is rejected.
	status, _ = postJSON(t, srv.URL+"/api/deposit", map[string]any{
		"receipt_id": "r-1",
		"class":      classA,
		"depositor":  seller,
		"pairs":      []map[string]string{{"id": "9", "quantity": "1"}},
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate deposit: expected 409, got %d", status)
	}

	// Promote the pending zone.
	status, _ = postJSON(t, srv.URL+"/api/admin/refresh", map[string]any{"caller": owner})
	if status != http.StatusOK {
		t.Fatalf("refresh: status %d", status)
	}

	status, quote := getJSON(t, srv.URL+"/api/quote")
	if status != http.StatusOK {
		t.Fatalf("quote: status %d", status)
	}
	if quote["available"].(float64) != 3 {
		t.Fatalf("expected 3 available, got %v", quote["available"])
	}
	if quote["price"] != "55000" { // halfway down the 10k-100k window
		t.Fatalf("expected price 55000, got %v", quote["price"])
	}

	status, preview := getJSON(t, srv.URL+"/api/preview")
	if status != http.StatusOK {
		t.Fatalf("preview: status %d", status)
	}
	previewItems := preview["items"].([]any)
	if len(previewItems) != 2 {
		t.Fatalf("expected bundle of 2, got %d", len(previewItems))
	}

	status, purchase := postJSON(t, srv.URL+"/api/purchase", map[string]any{
		"buyer":   buyer,
		"payment": quote["price"],
		"seed":    quote["seed"],
	})
	if status != http.StatusOK {
		t.Fatalf("purchase: status %d %v", status, purchase)
	}
	items := purchase["items"].([]any)
	if len(items) != len(previewItems) {
		t.Fatalf("preview/purchase size mismatch: %d vs %d", len(previewItems), len(items))
	}
	for i := range items {
		got := items[i].(map[string]any)["id"]
		want := previewItems[i].(map[string]any)["id"]
		if got != want {
			t.Errorf("item %d: preview promised id %v, purchase delivered %v", i, want, got)
		}
		id, _ := new(big.Int).SetString(got.(string), 10)
		if ownerOf := ledger.OwnerOf(classA, id); ownerOf != domain.Address(buyer) {
			t.Errorf("item %s not delivered to buyer, owner is %s", got, ownerOf)
		}
	}

	// Second purchase in the same window is refused.
	status, _ = postJSON(t, srv.URL+"/api/purchase", map[string]any{
		"buyer":   buyer,
		"payment": quote["price"],
		"seed":    quote["seed"],
	})
	if status != http.StatusConflict {
		t.Fatalf("second purchase: expected 409, got %d", status)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	// Unauthorized admin call.
	status, _ := postJSON(t, srv.URL+"/api/admin/refresh", map[string]any{"caller": "stranger"})
	if status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}

	// Preview over an empty pool.
	status, _ = getJSON(t, srv.URL+"/api/preview")
	if status != http.StatusGone {
		t.Errorf("expected 410, got %d", status)
	}

	// Deposit of an unregistered class.
	status, _ = postJSON(t, srv.URL+"/api/deposit", map[string]any{
		"receipt_id": "r-x",
		"class":      "mystery",
		"depositor":  seller,
		"pairs":      []map[string]string{{"id": "1", "quantity": "1"}},
	})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}

	// Malformed numeric field.
	status, _ = postJSON(t, srv.URL+"/api/fund", map[string]any{"from": owner, "amount": "not-a-number"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}

	// Withdraw by a non-owner.
	status, _ = postJSON(t, srv.URL+"/api/withdraw", map[string]any{"caller": "stranger", "amount": "10"})
	if status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}
}
