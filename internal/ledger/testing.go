package ledger

import "github.com/stellar/go/amount"

// SeedFunds is a test helper that credits an account directly when using the
// in-memory client, bypassing transaction submission.
func SeedFunds(c Client, address, asset, amountStr string) {
	if mem, ok := c.(*inMemoryClient); ok {
		stroops, err := amount.ParseInt64(amountStr)
		if err != nil {
			panic(err)
		}
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if _, ok := mem.balances[address]; !ok {
			mem.balances[address] = make(map[string]int64)
		}
		mem.balances[address][asset] += stroops
	}
}

// FailNextTransfer arms the in-memory client to reject its next Transfer call.
func FailNextTransfer(c Client, err error) {
	if mem, ok := c.(*inMemoryClient); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.transferErr = err
	}
}

// FailNextMerge arms the in-memory client to reject its next MergeInto call.
func FailNextMerge(c Client, err error) {
	if mem, ok := c.(*inMemoryClient); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.mergeErr = err
	}
}
