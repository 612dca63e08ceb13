// Package market implements the perpetual marketplace core: a pool that
// buys arbitrary assets at a flat price and resells them in fixed-size
// bundles through a recurring Dutch auction, with bundle contents drawn
// by a publicly recomputable pseudo-random selection over the pool.
package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/lta97/junkpool/internal/core/domain"
	"github.com/lta97/junkpool/internal/port"
)

// nonceUnset makes the very first window qualify as open.
const nonceUnset int64 = -1

// Market holds the whole marketplace state: asset registry, inventory
// arena, settlement balance and window state. Every public operation is
// atomic and guarded by a non-blocking lock; a collaborator callback
// that re-enters mid-call is rejected with ErrReentrantCall instead of
// blocking.
type Market struct {
	mu sync.Mutex

	cfg      domain.AuctionConfig
	registry map[domain.Address]domain.AssetKind
	inv      *inventory
	balance  *big.Int

	// available is the active-zone boundary; nonce is the window start
	// of the last window in which a purchase succeeded.
	available int
	nonce     int64

	now    func() int64
	seedFn SeedFunc

	assets  port.AssetCollaborator
	payouts port.ValueTransferrer
}

// Option adjusts a Market at construction, mainly the ambient time and
// seed sources.
type Option func(*Market)

func WithTimeSource(now func() int64) Option {
	return func(m *Market) { m.now = now }
}

func WithSeedFunc(fn SeedFunc) Option {
	return func(m *Market) { m.seedFn = fn }
}

func NewMarket(cfg domain.AuctionConfig, assets port.AssetCollaborator, payouts port.ValueTransferrer, opts ...Option) (*Market, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Market{
		cfg:      cfg,
		registry: make(map[domain.Address]domain.AssetKind),
		inv:      newInventory(),
		balance:  new(big.Int),
		nonce:    nonceUnset,
		now:      defaultNow,
		seedFn:   defaultSeed,
		assets:   assets,
		payouts:  payouts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// lock acquires the call-level latch. It never blocks: a held latch
// means a collaborator callback re-entered a guarded operation.
func (m *Market) lock() error {
	if !m.mu.TryLock() {
		return domain.ErrReentrantCall
	}
	return nil
}

func (m *Market) isTrusted(caller domain.Address) bool {
	return caller != domain.ZeroAddress && (caller == m.cfg.Controller || caller == m.cfg.Owner)
}

func (m *Market) isOwner(caller domain.Address) bool {
	return caller != domain.ZeroAddress && caller == m.cfg.Owner
}

// Classify reports the registered kind of an asset class, defaulting to
// KindUnclassified for unknown identities.
func (m *Market) Classify(class domain.Address) (domain.AssetKind, error) {
	if err := m.lock(); err != nil {
		return domain.KindUnclassified, err
	}
	defer m.mu.Unlock()
	return m.registry[class], nil
}

// Register applies a batch of (class, kind) updates. Classified kinds
// must attest support for their standard's capability interface; any
// failure aborts the whole batch.
func (m *Market) Register(ctx context.Context, caller domain.Address, entries []domain.RegistryEntry) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isTrusted(caller) {
		return nil, domain.ErrUnauthorized
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty registry batch", domain.ErrInvalidInput)
	}
	for _, e := range entries {
		if e.Class == domain.ZeroAddress {
			return nil, fmt.Errorf("%w: null asset class", domain.ErrInvalidInput)
		}
		if !e.Kind.Valid() {
			return nil, fmt.Errorf("%w: unknown kind tag %d", domain.ErrInvalidInput, e.Kind)
		}
		if e.Kind == domain.KindUnclassified {
			continue
		}
		ok, err := m.assets.SupportsKind(ctx, e.Class, e.Kind)
		if err != nil {
			return nil, fmt.Errorf("attest %s: %w", e.Class, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: class %s does not support %s interface", domain.ErrInvalidInput, e.Class, e.Kind)
		}
	}

	events := make([]domain.Event, 0, len(entries))
	for _, e := range entries {
		m.registry[e.Class] = e.Kind
		events = append(events, domain.NewEvent(domain.EventRegistryUpdated, domain.RegistryUpdatedPayload{
			Class: e.Class,
			Kind:  e.Kind,
		}))
	}
	return events, nil
}

// Deposit accepts an inbound asset callback: classify, pay the flat
// price per pair, append to the tail of the store. Quantity-bearing
// pairs already represented in the store are paid for but not
// re-appended. Nothing mutates if the payout fails.
func (m *Market) Deposit(ctx context.Context, dep domain.Deposit) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if dep.Depositor == domain.ZeroAddress {
		return nil, fmt.Errorf("%w: null depositor", domain.ErrInvalidInput)
	}
	if len(dep.Pairs) == 0 {
		return nil, fmt.Errorf("%w: empty deposit", domain.ErrInvalidInput)
	}
	kind := m.registry[dep.Class]
	if kind == domain.KindUnclassified {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAsset, dep.Class)
	}
	for _, p := range dep.Pairs {
		if p.ID == nil || p.Quantity == nil || p.Quantity.Sign() <= 0 {
			return nil, fmt.Errorf("%w: bad id/quantity pair", domain.ErrInvalidInput)
		}
		if kind == domain.KindUnique && p.Quantity.Cmp(big.NewInt(1)) != 0 {
			return nil, fmt.Errorf("%w: unique asset quantity must be 1", domain.ErrInvalidInput)
		}
	}

	owed := new(big.Int).Mul(m.cfg.FlatPrice, big.NewInt(int64(len(dep.Pairs))))
	if m.balance.Cmp(owed) < 0 {
		return nil, fmt.Errorf("%w: owe %s, balance %s", domain.ErrInsufficientFunds, owed, m.balance)
	}
	if err := m.payouts.Pay(ctx, dep.Depositor, owed); err != nil {
		return nil, fmt.Errorf("%w: flat-price payout: %v", domain.ErrTransferFailed, err)
	}

	m.balance.Sub(m.balance, owed)
	appended := 0
	for _, p := range dep.Pairs {
		if m.inv.append(domain.InventoryItem{Class: dep.Class, ID: p.ID}, kind) {
			appended++
		}
	}

	return []domain.Event{domain.NewEvent(domain.EventDeposited, domain.DepositedPayload{
		Depositor: dep.Depositor,
		Class:     dep.Class,
		Kind:      kind,
		Pairs:     dep.Pairs,
		PaidTotal: owed,
		Appended:  appended,
	})}, nil
}

// DrawnItem is one resolved bundle slot: the item plus its kind and the
// quantity a purchase transfers for it.
type DrawnItem struct {
	Class    domain.Address   `json:"class"`
	Kind     domain.AssetKind `json:"kind"`
	ID       *big.Int         `json:"id"`
	Quantity *big.Int         `json:"quantity"`
}

// Quote is the read-only auction surface for the current instant.
type Quote struct {
	Now         int64    `json:"now"`
	WindowStart int64    `json:"window_start"`
	Price       *big.Int `json:"price"`
	Seed        *big.Int `json:"seed"`
	Available   int      `json:"available"`
	TotalItems  int      `json:"total_items"`
	WindowOpen  bool     `json:"window_open"`
}

// PurchaseResult reports a completed bundle purchase.
type PurchaseResult struct {
	Buyer       domain.Address `json:"buyer"`
	WindowStart int64          `json:"window_start"`
	PricePaid   *big.Int       `json:"price_paid"`
	Items       []DrawnItem    `json:"items"`
}

// Quote returns price, window, seed and pool sizes for the current
// moment.
func (m *Market) Quote() (Quote, error) {
	if err := m.lock(); err != nil {
		return Quote{}, err
	}
	defer m.mu.Unlock()
	return m.quoteLocked(), nil
}

func (m *Market) quoteLocked() Quote {
	now := m.now()
	start := windowStart(now, m.cfg.WindowDuration)
	return Quote{
		Now:         now,
		WindowStart: start,
		Price:       windowPrice(now, m.cfg.WindowDuration, m.cfg.MinPrice, m.cfg.MaxPrice),
		Seed:        m.seedFn(start, m.available),
		Available:   m.available,
		TotalItems:  m.inv.size(),
		WindowOpen:  m.nonce != start,
	}
}

// Preview simulates the bundle the current seed would draw, without
// mutating anything. It fails with ErrInsufficientInventory exactly when
// a purchase would.
func (m *Market) Preview(ctx context.Context) ([]DrawnItem, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	q := m.quoteLocked()
	n := m.cfg.BundleSize
	bound, err := effectiveBound(m.available, m.inv.size(), n)
	if err != nil {
		return nil, err
	}
	items := selectReadOnly(m.inv, q.Seed, bound, n)
	drawn := make([]DrawnItem, 0, n)
	for _, it := range items {
		d, err := m.resolveQuantity(ctx, it)
		if err != nil {
			return nil, err
		}
		drawn = append(drawn, d)
	}
	return drawn, nil
}

// resolveQuantity fills in the kind and transfer quantity for a drawn
// item: 1 for unique assets, the pool's full held balance for
// quantity-bearing ones, 0 for de-registered (stranded) ones.
func (m *Market) resolveQuantity(ctx context.Context, it domain.InventoryItem) (DrawnItem, error) {
	d := DrawnItem{Class: it.Class, ID: it.ID, Kind: m.registry[it.Class]}
	switch d.Kind {
	case domain.KindUnique:
		d.Quantity = big.NewInt(1)
	case domain.KindMulti:
		q, err := m.assets.BalanceOf(ctx, it.Class, it.ID)
		if err != nil {
			return DrawnItem{}, fmt.Errorf("%w: balance query for %s/%s: %v", domain.ErrTransferFailed, it.Class, it.ID, err)
		}
		d.Quantity = q
	default:
		d.Quantity = new(big.Int)
	}
	return d, nil
}

// Purchase executes the single allowed purchase of the current window:
// verify the window is open, the caller's seed is current and the
// payment covers the price, then draw and transfer the bundle. The
// whole call is all-or-nothing.
func (m *Market) Purchase(ctx context.Context, buyer domain.Address, payment, expectedSeed *big.Int) (PurchaseResult, []domain.Event, error) {
	if err := m.lock(); err != nil {
		return PurchaseResult{}, nil, err
	}
	defer m.mu.Unlock()

	if buyer == domain.ZeroAddress {
		return PurchaseResult{}, nil, fmt.Errorf("%w: null buyer", domain.ErrInvalidInput)
	}
	if payment == nil || expectedSeed == nil {
		return PurchaseResult{}, nil, fmt.Errorf("%w: payment and seed required", domain.ErrInvalidInput)
	}

	q := m.quoteLocked()
	if m.nonce == q.WindowStart {
		return PurchaseResult{}, nil, fmt.Errorf("%w: window %d", domain.ErrAlreadyPurchased, q.WindowStart)
	}
	if expectedSeed.Cmp(q.Seed) != 0 {
		return PurchaseResult{}, nil, fmt.Errorf("%w: boundary or window moved", domain.ErrStaleTransaction)
	}
	if payment.Cmp(q.Price) < 0 {
		return PurchaseResult{}, nil, fmt.Errorf("%w: price is %s, paid %s", domain.ErrInsufficientPayment, q.Price, payment)
	}

	n := m.cfg.BundleSize
	total := m.inv.size()
	bound, err := effectiveBound(m.available, total, n)
	if err != nil {
		return PurchaseResult{}, nil, err
	}

	// Mutations begin: snapshot so a collaborator failure unwinds the
	// whole call.
	snap := m.inv.snapshot()
	prevAvailable, prevNonce := m.available, m.nonce
	prevBalance := new(big.Int).Set(m.balance)
	rollback := func() {
		m.inv.restore(snap)
		m.available, m.nonce = prevAvailable, prevNonce
		m.balance = prevBalance
	}

	items := selectAndRemove(m.inv, q.Seed, bound, n)
	m.available = total - n
	m.nonce = q.WindowStart
	m.balance.Add(m.balance, payment)

	drawn := make([]DrawnItem, 0, n)
	for _, it := range items {
		d, err := m.resolveQuantity(ctx, it)
		if err != nil {
			rollback()
			return PurchaseResult{}, nil, err
		}
		switch d.Kind {
		case domain.KindUnique:
			if err := m.assets.TransferSingle(ctx, d.Class, buyer, d.ID); err != nil {
				rollback()
				return PurchaseResult{}, nil, fmt.Errorf("%w: %s/%s: %v", domain.ErrTransferFailed, d.Class, d.ID, err)
			}
		case domain.KindMulti:
			if err := m.assets.TransferQuantity(ctx, d.Class, buyer, d.ID, d.Quantity); err != nil {
				rollback()
				return PurchaseResult{}, nil, fmt.Errorf("%w: %s/%s: %v", domain.ErrTransferFailed, d.Class, d.ID, err)
			}
		default:
			// De-registered after deposit: remove from bookkeeping,
			// transfer nothing. The held balance stays stranded until
			// the class is re-registered and the pair re-deposited.
		}
		// The dedup entry dies with the drawn item, whatever its kind.
		m.inv.clearExists(d.Class, d.ID)
		drawn = append(drawn, d)
	}

	res := PurchaseResult{Buyer: buyer, WindowStart: q.WindowStart, PricePaid: payment, Items: drawn}
	payload := domain.PurchasedPayload{
		Buyer:       buyer,
		WindowStart: q.WindowStart,
		PricePaid:   payment,
		Classes:     make([]domain.Address, 0, n),
		Kinds:       make([]domain.AssetKind, 0, n),
		IDs:         make([]*big.Int, 0, n),
		Quantities:  make([]*big.Int, 0, n),
	}
	for _, d := range drawn {
		payload.Classes = append(payload.Classes, d.Class)
		payload.Kinds = append(payload.Kinds, d.Kind)
		payload.IDs = append(payload.IDs, d.ID)
		payload.Quantities = append(payload.Quantities, d.Quantity)
	}
	return res, []domain.Event{domain.NewEvent(domain.EventPurchased, payload)}, nil
}

// SetFlatPrice updates the flat acquisition price.
func (m *Market) SetFlatPrice(caller domain.Address, price *big.Int) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isTrusted(caller) {
		return nil, domain.ErrUnauthorized
	}
	next := m.cfg
	next.FlatPrice = price
	if err := next.Validate(); err != nil {
		return nil, err
	}
	old := m.cfg.FlatPrice
	m.cfg = next
	return []domain.Event{domain.NewEvent(domain.EventFlatPriceSet, domain.FlatPriceSetPayload{Old: old, New: price})}, nil
}

// SetAuctionParams updates the Dutch-auction bounds and window duration.
func (m *Market) SetAuctionParams(caller domain.Address, min, max *big.Int, duration int64) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isTrusted(caller) {
		return nil, domain.ErrUnauthorized
	}
	next := m.cfg
	next.MinPrice, next.MaxPrice, next.WindowDuration = min, max, duration
	if err := next.Validate(); err != nil {
		return nil, err
	}
	payload := domain.AuctionSetPayload{
		OldMin: m.cfg.MinPrice, OldMax: m.cfg.MaxPrice, OldDuration: m.cfg.WindowDuration,
		NewMin: min, NewMax: max, NewDuration: duration,
	}
	m.cfg = next
	return []domain.Event{domain.NewEvent(domain.EventAuctionSet, payload)}, nil
}

// SetBundleSize updates the number of items drawn per purchase.
func (m *Market) SetBundleSize(caller domain.Address, n int) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isTrusted(caller) {
		return nil, domain.ErrUnauthorized
	}
	next := m.cfg
	next.BundleSize = n
	if err := next.Validate(); err != nil {
		return nil, err
	}
	old := m.cfg.BundleSize
	m.cfg = next
	return []domain.Event{domain.NewEvent(domain.EventBundleSizeSet, domain.BundleSizeSetPayload{Old: old, New: n})}, nil
}

// SetController reassigns the controller role. Owner only.
func (m *Market) SetController(caller, controller domain.Address) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isOwner(caller) {
		return nil, domain.ErrUnauthorized
	}
	old := m.cfg.Controller
	m.cfg.Controller = controller
	return []domain.Event{domain.NewEvent(domain.EventControllerSet, domain.ControllerSetPayload{Old: old, New: controller})}, nil
}

// Refresh bumps the active-zone boundary to the current store length,
// promoting every pending item into the next window's draw pool.
func (m *Market) Refresh(caller domain.Address) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isTrusted(caller) {
		return nil, domain.ErrUnauthorized
	}
	old := m.available
	m.available = m.inv.size()
	return []domain.Event{domain.NewEvent(domain.EventRefreshed, domain.RefreshedPayload{
		OldAvailable: old,
		NewAvailable: m.available,
	})}, nil
}

// Fund credits the pool balance. Open to anyone.
func (m *Market) Fund(from domain.Address, amount *big.Int) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fund amount must be positive", domain.ErrInvalidInput)
	}
	m.balance.Add(m.balance, amount)
	return []domain.Event{domain.NewEvent(domain.EventFunded, domain.FundedPayload{
		From:       from,
		Amount:     amount,
		NewBalance: new(big.Int).Set(m.balance),
	})}, nil
}

// Withdraw pays part of the pool balance out to the owner. The balance
// is only debited once the outgoing transfer succeeds.
func (m *Market) Withdraw(ctx context.Context, caller domain.Address, amount *big.Int) ([]domain.Event, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	if !m.isOwner(caller) {
		return nil, domain.ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: withdraw amount must be positive", domain.ErrInvalidInput)
	}
	if amount.Cmp(m.balance) > 0 {
		return nil, fmt.Errorf("%w: withdraw %s exceeds balance %s", domain.ErrInsufficientFunds, amount, m.balance)
	}
	if err := m.payouts.Pay(ctx, caller, amount); err != nil {
		return nil, fmt.Errorf("%w: withdrawal payout: %v", domain.ErrTransferFailed, err)
	}
	m.balance.Sub(m.balance, amount)
	return []domain.Event{domain.NewEvent(domain.EventWithdrawn, domain.WithdrawnPayload{
		To:         caller,
		Amount:     amount,
		NewBalance: new(big.Int).Set(m.balance),
	})}, nil
}

// Balance returns the pool's native-currency balance.
func (m *Market) Balance() (*big.Int, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance), nil
}

// Config returns a copy of the current configuration.
func (m *Market) Config() (domain.AuctionConfig, error) {
	if err := m.lock(); err != nil {
		return domain.AuctionConfig{}, err
	}
	defer m.mu.Unlock()
	return m.cfg, nil
}
