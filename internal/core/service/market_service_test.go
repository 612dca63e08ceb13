package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/lta97/junkpool/internal/core/domain"
	"github.com/lta97/junkpool/internal/core/market"

	"github.com/lta97/junkpool/internal/adapter/assets"
)

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

const (
	owner  = domain.Address("owner")
	seller = domain.Address("seller")
	classA = domain.Address("class-a")
	pool   = domain.Address("pool")
)

func newTestService(t *testing.T) (*MarketService, *assets.Ledger) {
	t.Helper()
	ledger := assets.NewLedger(pool)
	ledger.CreateClass(classA, domain.KindUnique)

	cfg := domain.AuctionConfig{
		FlatPrice:      big.NewInt(1_000),
		MinPrice:       big.NewInt(10_000),
		MaxPrice:       big.NewInt(100_000),
		WindowDuration: 900,
		BundleSize:     4,
		Controller:     owner,
		Owner:          owner,
	}
	m, err := market.NewMarket(cfg, ledger, ledger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewMarketService(m, newMockCacheRepo(), 100)

	if err := svc.Fund(owner, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if err := svc.Register(context.Background(), owner, []domain.RegistryEntry{
		{Class: classA, Kind: domain.KindUnique},
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return svc, ledger
}

func deposit(id int64) domain.Deposit {
	return domain.Deposit{
		Class:     classA,
		Depositor: seller,
		Pairs:     []domain.IDQuantity{{ID: big.NewInt(id), Quantity: big.NewInt(1)}},
	}
}

func TestDeposit_Success(t *testing.T) {
	svc, ledger := newTestService(t)
	defer svc.Close()

	ack, err := svc.Deposit(context.Background(), "receipt-1", deposit(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack != domain.DepositAck {
		t.Errorf("expected ack token, got %q", ack)
	}
	if got := ledger.AccountBalance(seller); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Errorf("expected seller paid 1000, got %s", got)
	}
}

func TestDeposit_DuplicateReceipt(t *testing.T) {
	svc, _ := newTestService(t)
	defer svc.Close()

	ctx := context.Background()
	if _, err := svc.Deposit(ctx, "receipt-1", deposit(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Deposit(ctx, "receipt-1", deposit(8))
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestDeposit_MissingReceiptID(t *testing.T) {
	svc, _ := newTestService(t)
	defer svc.Close()

	_, err := svc.Deposit(context.Background(), "", deposit(7))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEventsAreQueued(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Deposit(context.Background(), "receipt-1", deposit(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Close()

	var types []domain.EventType
	for e := range svc.GetEventQueue() {
		if e.ID == "" {
			t.Error("event missing id")
		}
		if e.At.IsZero() {
			t.Error("event missing timestamp")
		}
		types = append(types, e.Type)
	}

	want := []domain.EventType{domain.EventFunded, domain.EventRegistryUpdated, domain.EventDeposited}
	if len(types) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(types), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestFailedOperationEmitsNothing(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Deposit(context.Background(), "receipt-1", domain.Deposit{
		Class:     "unknown-class",
		Depositor: seller,
		Pairs:     []domain.IDQuantity{{ID: big.NewInt(1), Quantity: big.NewInt(1)}},
	})
	if !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
	svc.Close()

	count := 0
	for e := range svc.GetEventQueue() {
		if e.Type == domain.EventDeposited {
			count++
		}
	}
	if count != 0 {
		t.Errorf("expected no deposit events after a failed deposit, got %d", count)
	}
}
