package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
)

// baseReserve is the stub's stand-in for the network minimum balance, in stroops.
const baseReserve int64 = 10_000_000

type inMemoryClient struct {
	mu       sync.Mutex
	balances map[string]map[string]int64

	transferErr error
	mergeErr    error
}

// NewInMemory creates a concurrency-safe in-memory ledger client for tests
// and dev mode. Amounts are held in stroops (7 decimal places).
func NewInMemory() Client {
	return &inMemoryClient{balances: make(map[string]map[string]int64)}
}

func (c *inMemoryClient) GenerateIdentity() (string, string, error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", "", err
	}
	return kp.Address(), kp.Seed(), nil
}

func (c *inMemoryClient) FundNewAccount(_ context.Context, address, amountStr, asset string, _ time.Time) (string, error) {
	stroops, err := amount.ParseInt64(amountStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.balances[address]; exists {
		return "", fmt.Errorf("%w: account already exists", ErrTransferFailed)
	}
	c.balances[address] = map[string]int64{asset: stroops, "native": stroops}
	if asset != "native" {
		c.balances[address]["native"] = baseReserve
	}
	return newReference(), nil
}

func (c *inMemoryClient) Transfer(_ context.Context, seed, destination, amountStr, asset string) (TransferResult, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	stroops, err := amount.ParseInt64(amountStr)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transferErr != nil {
		err := c.transferErr
		c.transferErr = nil
		return TransferResult{}, err
	}

	source, ok := c.balances[kp.Address()]
	if !ok {
		return TransferResult{}, fmt.Errorf("%w: source account not found", ErrTransferFailed)
	}
	if source[asset] < stroops {
		return TransferResult{}, fmt.Errorf("%w: insufficient balance", ErrTransferFailed)
	}

	source[asset] -= stroops
	if _, ok := c.balances[destination]; !ok {
		c.balances[destination] = make(map[string]int64)
	}
	c.balances[destination][asset] += stroops
	return TransferResult{Reference: newReference(), Confirmed: true}, nil
}

func (c *inMemoryClient) MergeInto(_ context.Context, seed, destination string) (TransferResult, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mergeErr != nil {
		err := c.mergeErr
		c.mergeErr = nil
		return TransferResult{}, err
	}

	source, ok := c.balances[kp.Address()]
	if !ok {
		return TransferResult{}, fmt.Errorf("%w: source account not found", ErrTransferFailed)
	}
	for asset, remaining := range source {
		if asset != "native" && remaining > 0 {
			return TransferResult{}, fmt.Errorf("%w: account still holds %s", ErrTransferFailed, asset)
		}
	}
	if _, ok := c.balances[destination]; !ok {
		return TransferResult{}, fmt.Errorf("%w: destination account not found", ErrTransferFailed)
	}
	c.balances[destination]["native"] += source["native"]
	delete(c.balances, kp.Address())
	return TransferResult{Reference: newReference(), Confirmed: true}, nil
}

func (c *inMemoryClient) BalanceOf(_ context.Context, address, asset string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	account, ok := c.balances[address]
	if !ok {
		return "", ErrAccountNotFound
	}
	return amount.StringFromInt64(account[asset]), nil
}

func newReference() string {
	return uuid.NewString()
}
