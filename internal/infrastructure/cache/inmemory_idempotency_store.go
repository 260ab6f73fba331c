package cache

import (
	"context"
	"sync"
	"time"

	"github.com/glasserp/backend/internal/domain/shared"
)

type entry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory
// map. Suitable for single-instance deployments and testing.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store.
// A background goroutine evicts expired entries.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}
	store.wg.Add(1)
	go store.cleanupLoop()
	return store
}

// MarkProcessed marks an identifier as processed with a TTL.
// Returns true if it was newly marked, false if already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[id]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	s.entries[id] = entry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed checks whether an identifier has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[id]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
