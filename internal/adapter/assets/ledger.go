// Package assets provides an in-memory stand-in for the external asset
// standards and the native-value rail, so the server binary and tests
// run end-to-end without real collaborator deployments.
package assets

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/lta97/junkpool/internal/core/domain"
)

type holdingKey struct {
	class domain.Address
	id    string
	owner domain.Address
}

// Ledger tracks asset-class capabilities, per-owner holdings and native
// value accounts. It implements both collaborator ports from the pool's
// point of view.
type Ledger struct {
	mu sync.Mutex

	pool     domain.Address
	kinds    map[domain.Address]domain.AssetKind
	owners   map[string]domain.Address // unique assets: class/id -> owner
	holdings map[holdingKey]*big.Int   // quantity-bearing balances
	accounts map[domain.Address]*big.Int
}

func NewLedger(pool domain.Address) *Ledger {
	return &Ledger{
		pool:     pool,
		kinds:    make(map[domain.Address]domain.AssetKind),
		owners:   make(map[string]domain.Address),
		holdings: make(map[holdingKey]*big.Int),
		accounts: make(map[domain.Address]*big.Int),
	}
}

func uniqueKey(class domain.Address, id *big.Int) string {
	return string(class) + "/" + id.String()
}

// CreateClass declares an asset-class contract and the standard it
// implements.
func (l *Ledger) CreateClass(class domain.Address, kind domain.AssetKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds[class] = kind
}

// MintUnique assigns a fresh one-of-a-kind asset to owner.
func (l *Ledger) MintUnique(class domain.Address, id *big.Int, owner domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[uniqueKey(class, id)] = owner
}

// MintQuantity credits owner with quantity units of (class, id).
func (l *Ledger) MintQuantity(class domain.Address, id *big.Int, owner domain.Address, quantity *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := holdingKey{class: class, id: id.String(), owner: owner}
	if cur, ok := l.holdings[k]; ok {
		cur.Add(cur, quantity)
		return
	}
	l.holdings[k] = new(big.Int).Set(quantity)
}

// AccountBalance returns the native value credited to addr.
func (l *Ledger) AccountBalance(addr domain.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.accounts[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// OwnerOf reports the current owner of a unique asset.
func (l *Ledger) OwnerOf(class domain.Address, id *big.Int) domain.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owners[uniqueKey(class, id)]
}

func (l *Ledger) SupportsKind(ctx context.Context, class domain.Address, kind domain.AssetKind) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kinds[class] == kind, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, class domain.Address, id *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := holdingKey{class: class, id: id.String(), owner: l.pool}
	if b, ok := l.holdings[k]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *Ledger) TransferSingle(ctx context.Context, class domain.Address, to domain.Address, id *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := uniqueKey(class, id)
	if l.owners[k] != l.pool {
		return fmt.Errorf("pool does not own %s", k)
	}
	l.owners[k] = to
	return nil
}

func (l *Ledger) TransferQuantity(ctx context.Context, class domain.Address, to domain.Address, id, quantity *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := holdingKey{class: class, id: id.String(), owner: l.pool}
	held, ok := l.holdings[from]
	if !ok || held.Cmp(quantity) < 0 {
		return fmt.Errorf("pool holds %s of %s/%s, need %s", held, class, id, quantity)
	}
	held.Sub(held, quantity)
	if held.Sign() == 0 {
		delete(l.holdings, from)
	}
	dst := holdingKey{class: class, id: id.String(), owner: to}
	if cur, exists := l.holdings[dst]; exists {
		cur.Add(cur, quantity)
	} else {
		l.holdings[dst] = new(big.Int).Set(quantity)
	}
	return nil
}

func (l *Ledger) Pay(ctx context.Context, to domain.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to == domain.ZeroAddress {
		return fmt.Errorf("payment to null identity")
	}
	if cur, ok := l.accounts[to]; ok {
		cur.Add(cur, amount)
		return nil
	}
	l.accounts[to] = new(big.Int).Set(amount)
	return nil
}
