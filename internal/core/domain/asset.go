package domain

import (
	"fmt"
	"math/big"
)

// Address is an opaque identity handle for accounts and asset-class
// contracts. The zero value is the null identity and never valid.
type Address string

const ZeroAddress Address = ""

type AssetKind uint8

const (
	// KindUnclassified marks an asset class with no registered standard.
	// Items of such a class stay drawable but are never transferred.
	KindUnclassified AssetKind = iota
	// KindUnique is a one-of-a-kind asset, quantity always 1.
	KindUnique
	// KindMulti is a quantity-bearing asset, deduplicated per (class, id).
	KindMulti
)

func (k AssetKind) Valid() bool {
	return k <= KindMulti
}

func (k AssetKind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindMulti:
		return "multi"
	case KindUnclassified:
		return "unclassified"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k AssetKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

func (k *AssetKind) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"unique"`:
		*k = KindUnique
	case `"multi"`:
		*k = KindMulti
	case `"unclassified"`:
		*k = KindUnclassified
	default:
		return fmt.Errorf("unknown asset kind %s", b)
	}
	return nil
}

// InventoryItem is one listed, not-yet-sold unit: the identity of its
// asset class plus an instance id (up to 256 bits).
type InventoryItem struct {
	Class Address  `json:"class"`
	ID    *big.Int `json:"id"`
}

// IDQuantity is one (instance id, quantity) pair of an inbound deposit.
type IDQuantity struct {
	ID       *big.Int `json:"id"`
	Quantity *big.Int `json:"quantity"`
}

// Deposit is an inbound asset-receiver callback: a depositor handing one
// or more instances of a single asset class to the pool.
type Deposit struct {
	Class     Address      `json:"class"`
	Depositor Address      `json:"depositor"`
	Pairs     []IDQuantity `json:"pairs"`
}

// RegistryEntry is one (asset class, kind) pair of a registration batch.
type RegistryEntry struct {
	Class Address   `json:"class"`
	Kind  AssetKind `json:"kind"`
}

// DepositAck is the fixed acknowledgement token returned to external
// asset standards when a deposit callback is accepted. A standard that
// does not see this token fails its own transfer.
const DepositAck = "junkpool/deposit-accepted"
