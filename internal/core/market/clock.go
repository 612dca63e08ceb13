package market

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"time"
)

// SeedFunc combines a window start and the active-zone boundary into the
// deterministic draw seed. Not a security primitive: anyone can
// recompute it, which is what makes trustless preview possible.
type SeedFunc func(windowStart int64, available int) *big.Int

func defaultSeed(windowStart int64, available int) *big.Int {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(windowStart))
	binary.BigEndian.PutUint64(buf[8:], uint64(available))
	sum := sha256.Sum256(buf[:])
	return new(big.Int).SetBytes(sum[:])
}

func defaultNow() int64 {
	return time.Now().Unix()
}

// windowStart returns the start of the window containing now.
func windowStart(now, duration int64) int64 {
	return now - now%duration
}

// windowPrice is the sawtooth Dutch-auction price: max at the window
// boundary, decaying linearly toward min, resetting every window.
// Division truncates, so the buyer never pays less than the exact line.
func windowPrice(now, duration int64, min, max *big.Int) *big.Int {
	elapsed := now % duration
	decay := new(big.Int).Sub(max, min)
	decay.Mul(decay, big.NewInt(elapsed))
	decay.Div(decay, big.NewInt(duration))
	return decay.Sub(max, decay)
}
