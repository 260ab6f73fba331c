package event

import (
	"context"
	"errors"
	"testing"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	err      error
	panics   bool
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func newTestEvent(eventType string) shared.DomainEvent {
	event := shared.NewBaseDomainEvent(eventType, "Item", uuid.New())
	return &event
}

func TestInMemoryEventBus(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches to matching handlers synchronously", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"costing.stock_consumed"}}
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx, newTestEvent("costing.stock_consumed")))
		assert.Len(t, handler.received, 1)
	})

	t.Run("skips handlers for other event types", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"costing.stock_consumed"}}
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx, newTestEvent("costing.batch_created")))
		assert.Empty(t, handler.received)
	})

	t.Run("handlers without declared types receive everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{}
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx,
			newTestEvent("costing.batch_created"),
			newTestEvent("costing.stock_consumed"),
		))
		assert.Len(t, handler.received, 2)
	})

	t.Run("a failing handler does not stop the others", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &recordingHandler{types: []string{"costing.stock_consumed"}, err: errors.New("boom")}
		healthy := &recordingHandler{types: []string{"costing.stock_consumed"}}
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newTestEvent("costing.stock_consumed")))
		assert.Len(t, healthy.received, 1)
	})

	t.Run("a panicking handler is recovered", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		panicking := &recordingHandler{types: []string{"costing.stock_consumed"}, panics: true}
		healthy := &recordingHandler{types: []string{"costing.stock_consumed"}}
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newTestEvent("costing.stock_consumed")))
		assert.Len(t, healthy.received, 1)
	})

	t.Run("unsubscribed handlers stop receiving", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"costing.stock_consumed"}}
		bus.Subscribe(handler)
		bus.Unsubscribe(handler)

		require.NoError(t, bus.Publish(ctx, newTestEvent("costing.stock_consumed")))
		assert.Empty(t, handler.received)
	})
}
