package market

import (
	"fmt"
	"math/big"

	"github.com/lta97/junkpool/internal/core/domain"
)

// effectiveBound resolves the draw bound for a bundle of size n over an
// active zone of size available in a store of size total. When the
// active zone cannot fill the bundle but the whole store can, the bound
// widens to n+1 for this call only; the widened value is never persisted
// back to available.
func effectiveBound(available, total, n int) (int, error) {
	b := available
	if available <= n && total > n {
		b = n + 1
	}
	if b <= n {
		return 0, fmt.Errorf("%w: need %d items, bound is %d", domain.ErrInsufficientInventory, n, b)
	}
	return b, nil
}

// drawIndex is the raw slot for draw step i: seed mod (bound - i).
func drawIndex(seed *big.Int, bound, i int) int {
	m := new(big.Int).Mod(seed, big.NewInt(int64(bound-i)))
	return int(m.Int64())
}

// selectAndRemove runs the mutating draw: n items pulled out of the
// store under the swap-compaction rule, in draw order.
func selectAndRemove(inv *inventory, seed *big.Int, bound, n int) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, inv.drawAndRemove(bound-i, drawIndex(seed, bound, i)))
	}
	return out
}

// selectReadOnly resolves the same ordered items as selectAndRemove
// without touching the store. It is the read-only dual of the
// swap-compaction rule: instead of moving items, it keeps an overlay of
// displaced slots (slot -> original position now occupying it) and
// replays the compaction bookkeeping against the overlay. Displacements
// chain — a filler slot may itself have been refilled earlier — so every
// lookup resolves through the overlay.
func selectReadOnly(inv *inventory, seed *big.Int, bound, n int) []domain.InventoryItem {
	moved := make(map[int]int, 2*n)
	at := func(p int) int {
		if orig, ok := moved[p]; ok {
			return orig
		}
		return p
	}

	out := make([]domain.InventoryItem, 0, n)
	length := inv.size()
	for i := 0; i < n; i++ {
		b := bound - i
		r := drawIndex(seed, bound, i)
		out = append(out, inv.itemAt(at(r)))
		moved[r] = at(b - 1)
		if length > b {
			moved[b-1] = at(length - 1)
		}
		length--
	}
	return out
}
