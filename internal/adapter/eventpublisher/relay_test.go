package eventpublisher

import (
	"context"
	"sync"
	"testing"

	"github.com/gilrm92/trading-spot/internal/adapter/redis"
	"github.com/stretchr/testify/assert"
)

type mockHub struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockHub) Broadcast(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, string(data))
}

type mockCache struct {
	invalidations int
}

func (m *mockCache) InvalidateLocal() { m.invalidations++ }

type mockBus struct {
	events []redis.Event
}

func (m *mockBus) Subscribe(_ context.Context, handle func(event redis.Event, raw []byte)) {
	for _, e := range m.events {
		handle(e, []byte(`{"type":"`+e.Type+`"}`))
	}
}

func TestRelay_ItemCountersInvalidatesAndBroadcasts(t *testing.T) {
	hub := &mockHub{}
	cache := &mockCache{}
	relay := New(hub, cache)

	raw := []byte(`{"type":"item_counters","data":{"itemId":4,"likes":2,"dislikes":0,"heatUps":1}}`)
	relay.Handle(redis.Event{Type: redis.EventItemCounters}, raw)

	assert.Equal(t, 1, cache.invalidations)
	assert.Equal(t, []string{string(raw)}, hub.messages)
}

func TestRelay_CatalogChanged(t *testing.T) {
	hub := &mockHub{}
	cache := &mockCache{}
	relay := New(hub, cache)

	relay.Handle(redis.Event{Type: redis.EventCatalogChanged}, []byte(`{"type":"catalog_changed","data":{"reason":"sync"}}`))

	assert.Equal(t, 1, cache.invalidations)
	assert.Len(t, hub.messages, 1)
}

func TestRelay_UnknownTypeStillBroadcast(t *testing.T) {
	hub := &mockHub{}
	cache := &mockCache{}
	relay := New(hub, cache)

	relay.Handle(redis.Event{Type: "something_new"}, []byte(`{"type":"something_new"}`))

	assert.Zero(t, cache.invalidations)
	assert.Len(t, hub.messages, 1)
}

func TestRelay_NilCache(t *testing.T) {
	hub := &mockHub{}
	relay := New(hub, nil)

	assert.NotPanics(t, func() {
		relay.Handle(redis.Event{Type: redis.EventCatalogChanged}, []byte(`{}`))
	})
	assert.Len(t, hub.messages, 1)
}

func TestRelay_RunDrainsSubscription(t *testing.T) {
	hub := &mockHub{}
	cache := &mockCache{}
	bus := &mockBus{events: []redis.Event{
		{Type: redis.EventItemCounters},
		{Type: redis.EventCatalogChanged},
	}}

	New(hub, cache).Run(context.Background(), bus)

	assert.Equal(t, 2, cache.invalidations)
	assert.Equal(t, []string{`{"type":"item_counters"}`, `{"type":"catalog_changed"}`}, hub.messages)
}
