package escrow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.Mutex
	storage map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests and dev
// mode. Conditional updates hold the same compare-and-set contract as the
// Postgres implementation.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[account.ID]; exists {
		return errors.New("escrow account exists")
	}
	r.storage[account.ID] = account
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.storage[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *memoryRepository) GetByFingerprint(_ context.Context, fingerprint string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.storage {
		if account.CredentialFingerprint != "" && account.CredentialFingerprint == fingerprint {
			return account, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) List(_ context.Context, filter ListFilter) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var accounts []Account
	for _, account := range r.storage {
		if filter.Status != "" && account.Status != filter.Status {
			continue
		}
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(accounts) {
			return nil, nil
		}
		accounts = accounts[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(accounts) {
		accounts = accounts[:filter.Limit]
	}
	return accounts, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id string, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	if account.Status != from {
		return ErrConflict
	}
	account.Status = to
	account.UpdatedAt = time.Now().UTC()
	r.storage[id] = account
	return nil
}

func (r *memoryRepository) MarkClaimed(_ context.Context, id, destination string, claimedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	if account.Status != StatusPendingClaim {
		return ErrConflict
	}
	claimed := claimedAt.UTC()
	account.Status = StatusClaimed
	account.Destination = destination
	account.ClaimedAt = &claimed
	account.UpdatedAt = time.Now().UTC()
	r.storage[id] = account
	return nil
}

func (r *memoryRepository) RevertClaim(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	if account.Status != StatusClaimed {
		return ErrConflict
	}
	account.Status = StatusPendingClaim
	account.Destination = ""
	account.ClaimedAt = nil
	account.UpdatedAt = time.Now().UTC()
	r.storage[id] = account
	return nil
}
