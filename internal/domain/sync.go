package domain

import (
	"context"
	"encoding/json"
	"time"
)

// DisplayItem is one entry of the external inventory listing.
type DisplayItem struct {
	UID         int64  `json:"UID"`
	ID          int64  `json:"ID"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Quantity    int64  `json:"quantity"`
	Circulation int64  `json:"circulation"`
	MarketPrice int64  `json:"market_price"`
}

type ItemStats struct {
	Damage   *float64 `json:"damage"`
	Accuracy *float64 `json:"accuracy"`
	Armor    *float64 `json:"armor"`
	Quality  *float64 `json:"quality"`
}

type ItemDetails struct {
	SubType *string           `json:"sub_type"`
	Stats   ItemStats         `json:"stats"`
	Bonuses []json.RawMessage `json:"bonuses"`
	Rarity  *string           `json:"rarity"`
}

// ItemSource is the external item-data provider. All calls are untrusted and may fail.
type ItemSource interface {
	DisplayItems(ctx context.Context, apiKey string) ([]DisplayItem, error)
	ItemDetails(ctx context.Context, apiKey string, uid int64) (*ItemDetails, error)
	// ItemImage returns the image URL for the item, or nil if none is published.
	ItemImage(ctx context.Context, apiKey string, tornID, uid int64) (*string, error)
}

type SyncResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Removed int      `json:"removed"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors,omitempty"`
}

// SyncLock guarantees a single running sync across instances.
type SyncLock interface {
	// TryAcquire returns a release func, or ErrSyncInProgress.
	TryAcquire(ctx context.Context, ttl time.Duration) (release func(context.Context), err error)
}
