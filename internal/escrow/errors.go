package escrow

import "errors"

var (
	// ErrNotFound indicates no escrow account matches the lookup key.
	ErrNotFound = errors.New("escrow account not found")

	// ErrAlreadyRedeemed indicates the account has already been swept; a
	// redemption hitting this takes the idempotent replay path, a
	// verification hitting it surfaces as a conflict.
	ErrAlreadyRedeemed = errors.New("escrow already redeemed")

	// ErrNotFunded indicates the escrow is still awaiting its inbound payment.
	ErrNotFunded = errors.New("escrow not funded")

	// ErrAccountFailed indicates the escrow terminated in FAILED.
	ErrAccountFailed = errors.New("escrow account failed")

	// ErrInvalidState guards against status values outside the lifecycle
	// enum. Never expected in normal operation.
	ErrInvalidState = errors.New("escrow in invalid state")

	// ErrConflict indicates a conditional status update lost a race with a
	// concurrent transition; callers re-read and decide from the fresh state.
	ErrConflict = errors.New("concurrent escrow status change")
)
