package port

import (
	"context"
	"math/big"

	"github.com/lta97/junkpool/internal/core/domain"
)

// AssetCollaborator is the boundary to the external asset standards.
// The core decides what to move; the collaborator moves it.
type AssetCollaborator interface {
	// SupportsKind attests that class implements the capability
	// interface of the given standard.
	SupportsKind(ctx context.Context, class domain.Address, kind domain.AssetKind) (bool, error)

	// BalanceOf returns the pool's held quantity for a
	// quantity-bearing (class, id) pair.
	BalanceOf(ctx context.Context, class domain.Address, id *big.Int) (*big.Int, error)

	// TransferSingle moves one unique asset from the pool to the buyer.
	TransferSingle(ctx context.Context, class domain.Address, to domain.Address, id *big.Int) error

	// TransferQuantity moves quantity units of a quantity-bearing asset
	// from the pool to the buyer.
	TransferQuantity(ctx context.Context, class domain.Address, to domain.Address, id, quantity *big.Int) error
}

// ValueTransferrer pays native currency out of the pool. A rejected
// payment aborts the operation that attempted it.
type ValueTransferrer interface {
	Pay(ctx context.Context, to domain.Address, amount *big.Int) error
}
