package assets

import (
	"context"
	"math/big"
	"testing"

	"github.com/lta97/junkpool/internal/core/domain"
)

const (
	pool   = domain.Address("pool")
	alice  = domain.Address("alice")
	classA = domain.Address("class-a")
	classB = domain.Address("class-b")
)

func TestSupportsKind(t *testing.T) {
	l := NewLedger(pool)
	l.CreateClass(classA, domain.KindUnique)

	ctx := context.Background()
	ok, err := l.SupportsKind(ctx, classA, domain.KindUnique)
	if err != nil || !ok {
		t.Errorf("expected unique support, got %v %v", ok, err)
	}
	ok, _ = l.SupportsKind(ctx, classA, domain.KindMulti)
	if ok {
		t.Error("class must not attest a standard it does not implement")
	}
	ok, _ = l.SupportsKind(ctx, "missing", domain.KindUnique)
	if ok {
		t.Error("unknown class must not attest")
	}
}

func TestTransferSingle(t *testing.T) {
	l := NewLedger(pool)
	l.CreateClass(classA, domain.KindUnique)
	l.MintUnique(classA, big.NewInt(7), pool)

	ctx := context.Background()
	if err := l.TransferSingle(ctx, classA, alice, big.NewInt(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := l.OwnerOf(classA, big.NewInt(7)); got != alice {
		t.Errorf("expected owner alice, got %s", got)
	}

	// Pool no longer owns it.
	if err := l.TransferSingle(ctx, classA, alice, big.NewInt(7)); err == nil {
		t.Error("expected transfer of unowned asset to fail")
	}
}

func TestTransferQuantity(t *testing.T) {
	l := NewLedger(pool)
	l.CreateClass(classB, domain.KindMulti)
	l.MintQuantity(classB, big.NewInt(3), pool, big.NewInt(40))
	l.MintQuantity(classB, big.NewInt(3), pool, big.NewInt(2))

	ctx := context.Background()
	bal, err := l.BalanceOf(ctx, classB, big.NewInt(3))
	if err != nil || bal.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected pool balance 42, got %s (%v)", bal, err)
	}

	if err := l.TransferQuantity(ctx, classB, alice, big.NewInt(3), big.NewInt(42)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bal, _ = l.BalanceOf(ctx, classB, big.NewInt(3))
	if bal.Sign() != 0 {
		t.Errorf("expected drained pool balance, got %s", bal)
	}

	if err := l.TransferQuantity(ctx, classB, alice, big.NewInt(3), big.NewInt(1)); err == nil {
		t.Error("expected overdraw to fail")
	}
}

func TestPay(t *testing.T) {
	l := NewLedger(pool)

	ctx := context.Background()
	if err := l.Pay(ctx, alice, big.NewInt(100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Pay(ctx, alice, big.NewInt(11)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := l.AccountBalance(alice); got.Cmp(big.NewInt(111)) != 0 {
		t.Errorf("expected 111, got %s", got)
	}

	if err := l.Pay(ctx, domain.ZeroAddress, big.NewInt(1)); err == nil {
		t.Error("expected payment to null identity to fail")
	}
}
