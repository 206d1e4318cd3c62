package cache

import (
	"context"
	gosync "sync"
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
)

// InMemoryIdempotencyStore implements sync.IdempotencyStore with a
// process-local map. Suitable for single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	mu      gosync.Mutex
	entries map[string]time.Time // correlation ID -> expiry
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		entries: make(map[string]time.Time),
	}
}

// MarkProcessed marks a correlation ID as seen with a TTL.
// Returns true if it was newly marked, false if already present.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, correlationID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, ok := s.entries[correlationID]; ok && now.Before(expiry) {
		return false, nil
	}
	s.entries[correlationID] = now.Add(ttl)
	s.evictExpired(now)
	return true, nil
}

// IsProcessed checks whether a correlation ID has been seen
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, correlationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[correlationID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.entries, correlationID)
		return false, nil
	}
	return true, nil
}

// evictExpired drops expired entries. Caller must hold s.mu.
func (s *InMemoryIdempotencyStore) evictExpired(now time.Time) {
	for id, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, id)
		}
	}
}

// Ensure InMemoryIdempotencyStore implements sync.IdempotencyStore
var _ sync.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
