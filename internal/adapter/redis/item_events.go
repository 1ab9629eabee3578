package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gilrm92/trading-spot/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const itemEventsChannel = "items:events"

const (
	EventItemCounters   = "item_counters"
	EventCatalogChanged = "catalog_changed"
)

// Event is the envelope published on the item events channel. Data holds the
// JSON-encoded domain event named by Type.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventBus implements domain.EventPublisher over Redis pub/sub so every
// instance sees changes made by any other.
type EventBus struct {
	rdb *goredis.Client
}

var _ domain.EventPublisher = (*EventBus)(nil)

func NewEventBus(rdb *goredis.Client) *EventBus {
	return &EventBus{rdb: rdb}
}

func (b *EventBus) PublishItemCounters(ctx context.Context, event domain.ItemCountersChanged) error {
	return b.publish(ctx, EventItemCounters, event)
}

func (b *EventBus) PublishCatalogChanged(ctx context.Context, event domain.CatalogChanged) error {
	return b.publish(ctx, EventCatalogChanged, event)
}

func (b *EventBus) publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	msg, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := b.rdb.Publish(ctx, itemEventsChannel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// Subscribe delivers every event on the channel to handle, along with the raw
// message. Blocks until ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, handle func(event Event, raw []byte)) {
	pubsub := b.rdb.Subscribe(ctx, itemEventsChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("Invalid item event payload", "payload", msg.Payload, "error", err)
				continue
			}
			handle(event, []byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}
