package domain

import (
	"math/big"
	"time"
)

type EventType string

const (
	EventRegistryUpdated EventType = "registry.updated"
	EventDeposited       EventType = "market.deposited"
	EventPurchased       EventType = "market.purchased"
	EventFlatPriceSet    EventType = "config.flat_price"
	EventAuctionSet      EventType = "config.auction"
	EventBundleSizeSet   EventType = "config.bundle_size"
	EventControllerSet   EventType = "config.controller"
	EventRefreshed       EventType = "window.refreshed"
	EventFunded          EventType = "pool.funded"
	EventWithdrawn       EventType = "pool.withdrawn"
)

// Event is one structured notification emitted by a state-mutating
// operation. The core fills Type and Payload; the service layer stamps
// ID and At before the event reaches the journal and publishers.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload}
}

type RegistryUpdatedPayload struct {
	Class Address   `json:"class"`
	Kind  AssetKind `json:"kind"`
}

type DepositedPayload struct {
	Depositor Address      `json:"depositor"`
	Class     Address      `json:"class"`
	Kind      AssetKind    `json:"kind"`
	Pairs     []IDQuantity `json:"pairs"`
	PaidTotal *big.Int     `json:"paid_total"`
	Appended  int          `json:"appended"`
}

// PurchasedPayload enumerates the drawn items as four parallel
// sequences, in draw order.
type PurchasedPayload struct {
	Buyer       Address     `json:"buyer"`
	WindowStart int64       `json:"window_start"`
	PricePaid   *big.Int    `json:"price_paid"`
	Classes     []Address   `json:"classes"`
	Kinds       []AssetKind `json:"kinds"`
	IDs         []*big.Int  `json:"ids"`
	Quantities  []*big.Int  `json:"quantities"`
}

type FlatPriceSetPayload struct {
	Old *big.Int `json:"old"`
	New *big.Int `json:"new"`
}

type AuctionSetPayload struct {
	OldMin      *big.Int `json:"old_min"`
	OldMax      *big.Int `json:"old_max"`
	OldDuration int64    `json:"old_duration"`
	NewMin      *big.Int `json:"new_min"`
	NewMax      *big.Int `json:"new_max"`
	NewDuration int64    `json:"new_duration"`
}

type BundleSizeSetPayload struct {
	Old int `json:"old"`
	New int `json:"new"`
}

type ControllerSetPayload struct {
	Old Address `json:"old"`
	New Address `json:"new"`
}

type RefreshedPayload struct {
	OldAvailable int `json:"old_available"`
	NewAvailable int `json:"new_available"`
}

type FundedPayload struct {
	From       Address  `json:"from"`
	Amount     *big.Int `json:"amount"`
	NewBalance *big.Int `json:"new_balance"`
}

type WithdrawnPayload struct {
	To         Address  `json:"to"`
	Amount     *big.Int `json:"amount"`
	NewBalance *big.Int `json:"new_balance"`
}
