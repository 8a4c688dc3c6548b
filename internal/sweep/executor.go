package sweep

import (
	"context"
	"fmt"

	"github.com/claimlink/claimlink/internal/escrow"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/secrets"
)

// Executor performs the fund transfer and reserve reclamation against the
// ledger client. The escrow's signing seed is unsealed once per call and
// never leaves the call's stack.
type Executor struct {
	client ledger.Client
	cipher secrets.Cipher
}

// NewExecutor builds a sweep executor.
func NewExecutor(client ledger.Client, cipher secrets.Cipher) *Executor {
	return &Executor{client: client, cipher: cipher}
}

// Transfer sweeps the escrow's recorded amount to the destination.
func (e *Executor) Transfer(ctx context.Context, account escrow.Account, destination string) (ledger.TransferResult, error) {
	seed, err := e.cipher.Open(account.EncryptedSecret)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("%w: unseal escrow secret: %v", ledger.ErrTransferFailed, err)
	}
	return e.client.Transfer(ctx, seed, destination, account.Amount, account.Asset)
}

// ReclaimReserve merges the emptied escrow account into the destination to
// recover its base reserve. Best-effort: callers log failures and move on.
func (e *Executor) ReclaimReserve(ctx context.Context, account escrow.Account, destination string) (ledger.TransferResult, error) {
	seed, err := e.cipher.Open(account.EncryptedSecret)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("%w: unseal escrow secret: %v", ledger.ErrTransferFailed, err)
	}
	return e.client.MergeInto(ctx, seed, destination)
}
