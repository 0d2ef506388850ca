package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	resp      *StoredResponse
	expiresAt time.Time
}

// InMemoryIdempotencyStore implementa IdempotencyStore en un mapa. Solo para una instancia.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewInMemoryIdempotencyStore construye el store vacío.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{entries: make(map[string]entry), now: time.Now}
}

var _ IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (*StoredResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)
	if e, ok := s.entries[key]; ok {
		return e.resp, false, nil
	}
	s.entries[key] = entry{expiresAt: now.Add(ttl)}
	return nil, true, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{resp: &resp, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Size cantidad de claves vigentes.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.now())
	return len(s.entries)
}

func (s *InMemoryIdempotencyStore) prune(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
