// Package eventpublisher delivers item events arriving over Redis pub/sub to the
// consumers running in this instance.
package eventpublisher

import (
	"context"
	"log/slog"

	"github.com/gilrm92/trading-spot/internal/adapter/redis"
)

type broadcaster interface {
	Broadcast(data []byte)
}

type localCache interface {
	InvalidateLocal()
}

type subscriber interface {
	Subscribe(ctx context.Context, handle func(event redis.Event, raw []byte))
}

// Relay forwards every item event to the websocket hub unchanged, and drops the
// in-process catalog copy because any event means the listing is stale.
type Relay struct {
	hub   broadcaster
	cache localCache
}

// New creates a relay. cache may be nil.
func New(hub broadcaster, cache localCache) *Relay {
	return &Relay{hub: hub, cache: cache}
}

// Run subscribes to bus and blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, bus subscriber) {
	slog.Info("Item event relay started")
	bus.Subscribe(ctx, r.Handle)
	slog.Info("Item event relay stopped")
}

func (r *Relay) Handle(event redis.Event, raw []byte) {
	switch event.Type {
	case redis.EventItemCounters, redis.EventCatalogChanged:
		if r.cache != nil {
			r.cache.InvalidateLocal()
		}
	default:
		slog.Debug("Relaying unknown item event type", "type", event.Type)
	}
	r.hub.Broadcast(raw)
}
