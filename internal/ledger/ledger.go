package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransferFailed indicates the ledger network rejected a submitted
	// transaction. The wrapped reason is preserved for diagnostics but its
	// text is not stable.
	ErrTransferFailed = errors.New("ledger transfer failed")

	// ErrAccountNotFound indicates the queried account does not exist on the
	// ledger (yet) — typically an escrow awaiting its funding payment.
	ErrAccountNotFound = errors.New("ledger account not found")
)

// TransferResult captures the outcome of a submitted ledger transaction.
type TransferResult struct {
	Reference string
	Confirmed bool
}

// Client defines the contract implemented by ledger-network backends
// (e.g. Horizon). Signing seeds passed in are used for the single call and
// must never be retained.
type Client interface {
	// GenerateIdentity creates a fresh keypair: public address and signing seed.
	GenerateIdentity() (address, seed string, err error)

	// FundNewAccount creates and funds the escrow account on the ledger from
	// the configured funding source.
	FundNewAccount(ctx context.Context, address, amountStr, asset string, expiresAt time.Time) (string, error)

	// Transfer submits a single-asset payment from the seed's account.
	Transfer(ctx context.Context, seed, destination, amountStr, asset string) (TransferResult, error)

	// MergeInto merges the seed's (emptied) account into destination,
	// recovering its base reserve.
	MergeInto(ctx context.Context, seed, destination string) (TransferResult, error)

	// BalanceOf returns the account's balance for the asset as a 7-decimal string.
	BalanceOf(ctx context.Context, address, asset string) (string, error)
}
