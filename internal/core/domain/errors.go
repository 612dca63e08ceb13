package domain

import "errors"

var (
	// Input validation.
	ErrInvalidInput = errors.New("invalid input")

	// Authorization.
	ErrUnauthorized = errors.New("caller not authorized")

	// State preconditions.
	ErrUnknownAsset          = errors.New("unknown asset class")
	ErrInsufficientFunds     = errors.New("insufficient pool funds")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrAlreadyPurchased      = errors.New("window already purchased")
	ErrStaleTransaction      = errors.New("stale seed")
	ErrInsufficientPayment   = errors.New("insufficient payment")

	// External collaborators.
	ErrTransferFailed = errors.New("transfer failed")

	// Locking discipline: a nested call re-entered a guarded operation.
	ErrReentrantCall = errors.New("reentrant call")
)
