package domain

import "context"

// ItemCountersChanged is emitted after any change to an item's reaction counters.
type ItemCountersChanged struct {
	ItemID   int64 `json:"itemId"`
	Likes    int   `json:"likes"`
	Dislikes int   `json:"dislikes"`
	HeatUps  int   `json:"heatUps"`
}

// CatalogChanged is emitted after edits, deletes and syncs.
type CatalogChanged struct {
	Reason string `json:"reason"`
}

// EventPublisher publishes domain events to infrastructure.
type EventPublisher interface {
	PublishItemCounters(ctx context.Context, event ItemCountersChanged) error
	PublishCatalogChanged(ctx context.Context, event CatalogChanged) error
}
