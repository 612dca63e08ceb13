package domain

import (
	"fmt"
	"math/big"
)

// MinWindowDuration is the smallest accepted auction window, in seconds.
const MinWindowDuration int64 = 60

// AuctionConfig is the full marketplace configuration. Every mutation of
// it goes through the trusted configuration surface and is re-validated.
type AuctionConfig struct {
	// FlatPrice is paid out per deposited (id, quantity) pair.
	FlatPrice *big.Int
	// MinPrice and MaxPrice bound the sawtooth Dutch-auction price.
	MinPrice *big.Int
	MaxPrice *big.Int
	// WindowDuration is the auction window length in seconds.
	WindowDuration int64
	// BundleSize is the number of items drawn per purchase.
	BundleSize int

	Controller Address
	Owner      Address
}

func (c AuctionConfig) Validate() error {
	if c.Owner == ZeroAddress {
		return fmt.Errorf("%w: owner is the null identity", ErrInvalidInput)
	}
	if c.BundleSize <= 0 {
		return fmt.Errorf("%w: bundle size must be positive", ErrInvalidInput)
	}
	if c.WindowDuration < MinWindowDuration {
		return fmt.Errorf("%w: window duration below %ds", ErrInvalidInput, MinWindowDuration)
	}
	if c.FlatPrice == nil || c.FlatPrice.Sign() <= 0 {
		return fmt.Errorf("%w: flat price must be positive", ErrInvalidInput)
	}
	if c.MinPrice == nil || c.MaxPrice == nil || c.MinPrice.Cmp(c.MaxPrice) > 0 {
		return fmt.Errorf("%w: auction minimum exceeds maximum", ErrInvalidInput)
	}
	// Reselling one bundle at the auction minimum must cover the flat
	// payouts made to acquire it.
	outlay := new(big.Int).Mul(c.FlatPrice, big.NewInt(int64(c.BundleSize)))
	if outlay.Cmp(c.MinPrice) >= 0 {
		return fmt.Errorf("%w: flat price times bundle size must stay below auction minimum", ErrInvalidInput)
	}
	return nil
}
