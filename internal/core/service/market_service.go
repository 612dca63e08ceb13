package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/lta97/junkpool/internal/core/domain"
	"github.com/lta97/junkpool/internal/core/market"
	"github.com/lta97/junkpool/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

// MarketService fronts the market core: it guards deposit callbacks with
// an idempotency key (external standards redeliver) and fans emitted
// notifications out on a queue drained by the journal/publisher workers.
type MarketService struct {
	market     *market.Market
	cache      port.CacheRepository
	eventQueue chan domain.Event
}

func NewMarketService(m *market.Market, cache port.CacheRepository, queueSize int) *MarketService {
	return &MarketService{
		market:     m,
		cache:      cache,
		eventQueue: make(chan domain.Event, queueSize),
	}
}

// Deposit runs an inbound asset callback and returns the acknowledgement
// token the external standard expects.
func (s *MarketService) Deposit(ctx context.Context, receiptID string, dep domain.Deposit) (string, error) {
	if receiptID == "" {
		return "", fmt.Errorf("%w: missing receipt id", domain.ErrInvalidInput)
	}
	idempotencyKey := fmt.Sprintf("deposit:%s", receiptID)

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return "", fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return "", ErrDuplicateRequest
	}

	events, err := s.market.Deposit(ctx, dep)
	if err != nil {
		return "", err
	}
	s.emit(events)
	return domain.DepositAck, nil
}

func (s *MarketService) Purchase(ctx context.Context, buyer domain.Address, payment, expectedSeed *big.Int) (market.PurchaseResult, error) {
	res, events, err := s.market.Purchase(ctx, buyer, payment, expectedSeed)
	if err != nil {
		return market.PurchaseResult{}, err
	}
	s.emit(events)
	return res, nil
}

func (s *MarketService) Quote() (market.Quote, error) {
	return s.market.Quote()
}

func (s *MarketService) Preview(ctx context.Context) ([]market.DrawnItem, error) {
	return s.market.Preview(ctx)
}

func (s *MarketService) Balance() (*big.Int, error) {
	return s.market.Balance()
}

func (s *MarketService) Register(ctx context.Context, caller domain.Address, entries []domain.RegistryEntry) error {
	return s.relay(s.market.Register(ctx, caller, entries))
}

func (s *MarketService) SetFlatPrice(caller domain.Address, price *big.Int) error {
	return s.relay(s.market.SetFlatPrice(caller, price))
}

func (s *MarketService) SetAuctionParams(caller domain.Address, min, max *big.Int, duration int64) error {
	return s.relay(s.market.SetAuctionParams(caller, min, max, duration))
}

func (s *MarketService) SetBundleSize(caller domain.Address, n int) error {
	return s.relay(s.market.SetBundleSize(caller, n))
}

func (s *MarketService) SetController(caller, controller domain.Address) error {
	return s.relay(s.market.SetController(caller, controller))
}

func (s *MarketService) Refresh(caller domain.Address) error {
	return s.relay(s.market.Refresh(caller))
}

func (s *MarketService) Fund(from domain.Address, amount *big.Int) error {
	return s.relay(s.market.Fund(from, amount))
}

func (s *MarketService) Withdraw(ctx context.Context, caller domain.Address, amount *big.Int) error {
	return s.relay(s.market.Withdraw(ctx, caller, amount))
}

func (s *MarketService) relay(events []domain.Event, err error) error {
	if err != nil {
		return err
	}
	s.emit(events)
	return nil
}

func (s *MarketService) emit(events []domain.Event) {
	for _, e := range events {
		e.ID = uuid.NewString()
		e.At = time.Now()
		s.eventQueue <- e
	}
}

func (s *MarketService) GetEventQueue() <-chan domain.Event {
	return s.eventQueue
}

func (s *MarketService) Close() {
	close(s.eventQueue)
}
