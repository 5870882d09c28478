package medicine

import (
	"context"
	"sync"
)

// MemStore is a Store without durability, for tests and throwaway runs.
type MemStore struct {
	mu sync.RWMutex
	c  Collection
}

func NewMemStore(seed ...Medicine) *MemStore {
	return &MemStore{c: Collection{Medicines: append([]Medicine{}, seed...)}}
}

func (s *MemStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemStore) Load(ctx context.Context) (Collection, error) {
	if err := ctx.Err(); err != nil {
		return Collection{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.clone(), nil
}

func (s *MemStore) Save(ctx context.Context, c Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = c.clone()
	return nil
}
