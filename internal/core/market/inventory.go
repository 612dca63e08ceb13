package market

import (
	"math/big"

	"github.com/lta97/junkpool/internal/core/domain"
)

type existsKey struct {
	class domain.Address
	id    string
}

func keyFor(class domain.Address, id *big.Int) existsKey {
	return existsKey{class: class, id: id.String()}
}

// inventory is the swap-compaction arena holding listed items. Items are
// appended at the tail; draws remove from anywhere without leaving gaps
// by pulling replacements from the end of the drawn region and, when a
// pending suffix exists, from the very tail of the store.
//
// exists holds one entry per live quantity-bearing (class, id) pair so a
// pair never occupies two slots; the pair's held quantity grows outside
// the store and is only read back at draw time.
type inventory struct {
	items  []domain.InventoryItem
	exists map[existsKey]struct{}
}

func newInventory() *inventory {
	return &inventory{exists: make(map[existsKey]struct{})}
}

func (inv *inventory) size() int {
	return len(inv.items)
}

func (inv *inventory) itemAt(i int) domain.InventoryItem {
	return inv.items[i]
}

func (inv *inventory) has(class domain.Address, id *big.Int) bool {
	_, ok := inv.exists[keyFor(class, id)]
	return ok
}

// append adds an item at the tail. For quantity-bearing kinds a pair
// already present in exists is a no-op; the existing entry keeps
// representing all future quantity growth. Reports whether a slot was
// actually added.
func (inv *inventory) append(item domain.InventoryItem, kind domain.AssetKind) bool {
	if kind == domain.KindMulti {
		k := keyFor(item.Class, item.ID)
		if _, ok := inv.exists[k]; ok {
			return false
		}
		inv.exists[k] = struct{}{}
	}
	inv.items = append(inv.items, item)
	return true
}

// drawAndRemove returns the item at slot within the undrawn region of
// size bound, then compacts: the slot is refilled from position bound-1,
// and if the store extends past bound, position bound-1 is refilled from
// the tail, interleaving one pending item into the drawn region. The
// store shrinks by one and stays gap-free.
func (inv *inventory) drawAndRemove(bound, slot int) domain.InventoryItem {
	item := inv.items[slot]
	last := len(inv.items) - 1
	inv.items[slot] = inv.items[bound-1]
	if last+1 > bound {
		inv.items[bound-1] = inv.items[last]
	}
	inv.items[last] = domain.InventoryItem{}
	inv.items = inv.items[:last]
	return item
}

func (inv *inventory) clearExists(class domain.Address, id *big.Int) {
	delete(inv.exists, keyFor(class, id))
}

// snapshot and restore back the all-or-nothing guarantee of purchase:
// the store is value-typed, so a shallow copy of the slice and set is a
// full copy.
func (inv *inventory) snapshot() *inventory {
	cp := &inventory{
		items:  make([]domain.InventoryItem, len(inv.items)),
		exists: make(map[existsKey]struct{}, len(inv.exists)),
	}
	copy(cp.items, inv.items)
	for k := range inv.exists {
		cp.exists[k] = struct{}{}
	}
	return cp
}

func (inv *inventory) restore(snap *inventory) {
	inv.items = snap.items
	inv.exists = snap.exists
}
