package claims

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu      sync.Mutex
	storage map[string]Record
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Record)}
}

func (r *memoryRepository) Create(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[record.ID]; exists {
		return errors.New("claim record exists")
	}
	for _, existing := range r.storage {
		if existing.AccountID == record.AccountID {
			return errors.New("claim record exists for account")
		}
	}
	r.storage[record.ID] = record
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.storage[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (r *memoryRepository) GetByAccount(_ context.Context, accountID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.storage {
		if record.AccountID == accountID {
			return record, nil
		}
	}
	return Record{}, ErrNotFound
}
