package domain

import (
	"context"
	"encoding/json"
	"time"
)

type Item struct {
	ID     int64 `json:"id"`
	UID    int64 `json:"uid,string"`
	TornID int64 `json:"tornId"`

	Name        string          `json:"name"`
	Type        string          `json:"type"`
	SubType     *string         `json:"subType"`
	Quantity    int64           `json:"quantity"`
	Circulation int64           `json:"circulation"`
	MarketPrice int64           `json:"marketPrice"`
	Damage      *float64        `json:"damage"`
	Accuracy    *float64        `json:"accuracy"`
	Armor       *float64        `json:"armor"`
	Quality     *float64        `json:"quality"`
	Bonuses     json.RawMessage `json:"bonuses"`
	Rarity      *string         `json:"rarity"`
	Image       *string         `json:"image"`

	MyDescription *string  `json:"myDescription"`
	MyPrice       *float64 `json:"myPrice"`

	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
	HeatUps  int `json:"heatUps"`

	IsDeleted bool `json:"isDeleted"`
	IsSold    bool `json:"isSold"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Nullable distinguishes an absent field from an explicit null.
// Set=false: leave unchanged. Set=true, Value=nil: clear.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

func Value[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }

// ItemUpdate is a sparse admin edit. Nil pointers are left unchanged.
type ItemUpdate struct {
	MyDescription Nullable[string]
	MyPrice       Nullable[float64]
	Likes         *int
	Dislikes      *int
	HeatUps       *int
	IsSold        *bool
}

func (u ItemUpdate) IsEmpty() bool {
	return !u.MyDescription.Set && !u.MyPrice.Set &&
		u.Likes == nil && u.Dislikes == nil && u.HeatUps == nil && u.IsSold == nil
}

// TouchesCounters reports whether the edit overrides reaction aggregates.
func (u ItemUpdate) TouchesCounters() bool {
	return u.Likes != nil || u.Dislikes != nil || u.HeatUps != nil
}

// SyncedItem carries the externally sourced fields written by the sync job.
type SyncedItem struct {
	UID         int64
	TornID      int64
	Name        string
	Type        string
	SubType     *string
	Quantity    int64
	Circulation int64
	MarketPrice int64
	Damage      *float64
	Accuracy    *float64
	Armor       *float64
	Quality     *float64
	Bonuses     json.RawMessage
	Rarity      *string
	Image       *string
}

type ItemRepository interface {
	GetByID(ctx context.Context, id int64) (*Item, error)
	GetByUID(ctx context.Context, uid int64) (*Item, error)
	// ListActive returns non-deleted items, unsold first, then by name.
	ListActive(ctx context.Context) ([]Item, error)
	Update(ctx context.Context, id int64, update ItemUpdate) (*Item, error)
	SoftDelete(ctx context.Context, id int64) (*Item, error)
	// UpsertByUID creates or refreshes the external fields of an item.
	// created reports whether a new row was inserted.
	UpsertByUID(ctx context.Context, item SyncedItem) (created bool, err error)
	// DeleteExceptUIDs hard-deletes every item whose uid is not in keep and returns the count.
	DeleteExceptUIDs(ctx context.Context, keep []int64) (int, error)
}

// CatalogCache caches the public item listing. Every Invalidate advances the
// generation; Set stores a listing only if the generation it was loaded under
// is still current, so a load that raced a write never reaches the cache.
type CatalogCache interface {
	Get(ctx context.Context) ([]Item, bool)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, gen int64, items []Item) bool
	Invalidate(ctx context.Context) error
}
