package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	events []shared.DomainEvent
	err    error
	panics bool
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestInMemoryEventBus(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	t.Run("routes events by type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		received := &recordingHandler{types: []string{movement.EventTypeStockReceived}}
		shipped := &recordingHandler{types: []string{movement.EventTypeStockShipped}}
		bus.Subscribe(received)
		bus.Subscribe(shipped)

		require.NoError(t, bus.Publish(ctx, movement.NewStockReceivedEvent(companyID, uuid.New())))

		assert.Equal(t, 1, received.count())
		assert.Equal(t, 0, shipped.count())
	})

	t.Run("wildcard handler sees everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		all := &recordingHandler{}
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx,
			movement.NewStockReceivedEvent(companyID, uuid.New()),
			movement.NewStockShippedEvent(companyID, uuid.New()),
		))
		assert.Equal(t, 2, all.count())
	})

	t.Run("handler error does not stop other handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &recordingHandler{types: []string{movement.EventTypeStockReceived}, err: errors.New("db down")}
		healthy := &recordingHandler{types: []string{movement.EventTypeStockReceived}}
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, movement.NewStockReceivedEvent(companyID, uuid.New())))
		assert.Equal(t, 1, healthy.count())
	})

	t.Run("panicking handler does not stop other handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		panicking := &recordingHandler{types: []string{movement.EventTypeStockReceived}, panics: true}
		healthy := &recordingHandler{types: []string{movement.EventTypeStockReceived}}
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, movement.NewStockReceivedEvent(companyID, uuid.New())))
		assert.Equal(t, 1, healthy.count())
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{movement.EventTypeStockReceived}}
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(ctx, movement.NewStockReceivedEvent(companyID, uuid.New())))
		assert.Equal(t, 0, h.count())
	})

	t.Run("start and stop", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		require.NoError(t, bus.Start(ctx))
		require.NoError(t, bus.Stop(ctx))
	})
}
