package lock

import (
	"sync"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
)

type lockKey struct {
	companyID   uuid.UUID
	productID   uuid.UUID
	warehouseID uuid.UUID
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes cost layer mutation per (company, product,
// warehouse). Mutexes are created on demand and removed once the last
// holder releases, so the map stays bounded by the number of keys under
// contention.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[lockKey]*refMutex
}

// NewKeyedMutex creates a new keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[lockKey]*refMutex)}
}

// Acquire blocks until the key is exclusively held and returns the release
// function
func (k *KeyedMutex) Acquire(companyID, productID, warehouseID uuid.UUID) (release func()) {
	key := lockKey{companyID: companyID, productID: productID, warehouseID: warehouseID}

	k.mu.Lock()
	rm, ok := k.locks[key]
	if !ok {
		rm = &refMutex{}
		k.locks[key] = rm
	}
	rm.refs++
	k.mu.Unlock()

	rm.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rm.mu.Unlock()

			k.mu.Lock()
			rm.refs--
			if rm.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

// Ensure KeyedMutex implements MutationGuard
var _ costing.MutationGuard = (*KeyedMutex)(nil)
