package sweep

import (
	"errors"

	"github.com/stellar/go/strkey"

	"github.com/claimlink/claimlink/internal/escrow"
)

var (
	// ErrInvalidDestination indicates the destination is not a valid ledger
	// account address.
	ErrInvalidDestination = errors.New("invalid destination address")

	// ErrAmountMismatch indicates the requested amount differs from the
	// escrow's recorded amount.
	ErrAmountMismatch = errors.New("amount does not match escrow amount")

	// ErrAssetMismatch indicates the requested asset differs from the
	// escrow's recorded asset.
	ErrAssetMismatch = errors.New("asset does not match escrow asset")
)

// Validate checks a redemption request against the escrow's recorded terms.
// Pure and side-effect-free; runs before any state mutation or external call.
// Amounts are compared as exact 7-decimal strings: the escrow sweeps all or
// nothing, so no arithmetic is involved.
func Validate(account escrow.Account, destination, amountStr, asset string) error {
	if !strkey.IsValidEd25519PublicKey(destination) {
		return ErrInvalidDestination
	}
	if amountStr != account.Amount {
		return ErrAmountMismatch
	}
	if asset != account.Asset {
		return ErrAssetMismatch
	}
	return nil
}
