package app

import (
	"context"
	"log/slog"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const catalogFlightKey = "catalog"

// Service is the application layer for the public catalog, reactions and admin edits.
// Sync and login live in SyncJob and Authenticator.
type Service struct {
	items       domain.ItemRepository
	reactions   domain.ReactionRepository
	cache       domain.CatalogCache
	publisher   domain.EventPublisher
	metrics     *metrics.ReactionMetrics
	clock       clockwork.Clock
	catalogLoad singleflight.Group
}

// NewService creates the application layer service.
// cache, publisher and m may be nil.
func NewService(items domain.ItemRepository, reactions domain.ReactionRepository, cache domain.CatalogCache, publisher domain.EventPublisher, m *metrics.ReactionMetrics, clock clockwork.Clock) *Service {
	return &Service{
		items:     items,
		reactions: reactions,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
	}
}

// ListItems returns the non-deleted catalog, unsold first, then by name.
// Concurrent cache misses share a single database read.
func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	if s.cache != nil {
		if items, ok := s.cache.Get(ctx); ok {
			return items, nil
		}
	}

	v, err, _ := s.catalogLoad.Do(catalogFlightKey, func() (any, error) {
		gen, cacheable := s.catalogGeneration(ctx)

		items, err := s.items.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.Item{}
		}
		if cacheable {
			s.cache.Set(ctx, gen, items)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Item), nil
}

// catalogGeneration must be read before the database so a write landing
// mid-load invalidates the result.
func (s *Service) catalogGeneration(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		slog.Warn("Failed to read catalog cache generation", "error", err)
		return 0, false
	}
	return gen, true
}

// catalogChanged drops the cached listing and notifies subscribers. Both are best-effort.
func (s *Service) catalogChanged(ctx context.Context, reason string) {
	s.invalidateCatalog(ctx)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCatalogChanged(ctx, domain.CatalogChanged{Reason: reason}); err != nil {
		slog.Error("Failed to publish catalog change", "reason", reason, "error", err)
	}
}

// invalidateCatalog also detaches any in-flight load so later readers start a
// fresh one instead of joining a read that predates the write.
func (s *Service) invalidateCatalog(ctx context.Context) {
	s.catalogLoad.Forget(catalogFlightKey)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Warn("Failed to invalidate catalog cache", "error", err)
	}
}

func (s *Service) publishCounters(ctx context.Context, item *domain.Item) {
	if s.publisher == nil {
		return
	}
	event := domain.ItemCountersChanged{
		ItemID:   item.ID,
		Likes:    item.Likes,
		Dislikes: item.Dislikes,
		HeatUps:  item.HeatUps,
	}
	if err := s.publisher.PublishItemCounters(ctx, event); err != nil {
		slog.Error("Failed to publish item counters", "item_id", item.ID, "error", err)
	}
}
