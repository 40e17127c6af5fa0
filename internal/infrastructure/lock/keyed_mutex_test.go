package lock

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("same key is mutually exclusive", func(t *testing.T) {
		km := NewKeyedMutex()
		companyID, productID, warehouseID := uuid.New(), uuid.New(), uuid.New()

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release := km.Acquire(companyID, productID, warehouseID)
				defer release()
				counter++
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		km := NewKeyedMutex()
		companyID, productID := uuid.New(), uuid.New()

		releaseA := km.Acquire(companyID, productID, uuid.New())
		defer releaseA()

		done := make(chan struct{})
		go func() {
			releaseB := km.Acquire(companyID, productID, uuid.New())
			releaseB()
			close(done)
		}()
		<-done
	})

	t.Run("map is cleaned up after release", func(t *testing.T) {
		km := NewKeyedMutex()
		release := km.Acquire(uuid.New(), uuid.New(), uuid.New())
		release()

		km.mu.Lock()
		defer km.mu.Unlock()
		assert.Empty(t, km.locks)
	})

	t.Run("double release is harmless", func(t *testing.T) {
		km := NewKeyedMutex()
		companyID, productID, warehouseID := uuid.New(), uuid.New(), uuid.New()

		release := km.Acquire(companyID, productID, warehouseID)
		release()
		release()

		releaseAgain := km.Acquire(companyID, productID, warehouseID)
		releaseAgain()
	})
}
