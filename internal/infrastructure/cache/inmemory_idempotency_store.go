package cache

import (
	"context"
	"sync"
	"time"

	"github.com/stockledger/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore tracks processed event IDs in a map with TTLs.
// Suitable for single-instance deployments and tests; it does not share
// state across processes.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	deadlines map[string]time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts a background
// sweep of expired entries
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		deadlines: make(map[string]time.Time),
		stopChan:  make(chan struct{}),
	}
	store.wg.Add(1)
	go store.sweepLoop()
	return store
}

// MarkProcessed marks an event as processed with a TTL. Returns true if the
// event was newly marked, false if it was already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.deadlines[eventID]; ok && time.Now().Before(deadline) {
		return false, nil
	}
	s.deadlines[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed checks if an event has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deadline, ok := s.deadlines[eventID]
	return ok && time.Now().Before(deadline), nil
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of tracked entries, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deadlines)
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for eventID, deadline := range s.deadlines {
		if now.After(deadline) {
			delete(s.deadlines, eventID)
		}
	}
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
