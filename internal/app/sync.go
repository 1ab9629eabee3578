package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/jonboulle/clockwork"
)

// SyncJob reconciles the stored catalog with the external inventory listing.
type SyncJob struct {
	source    domain.ItemSource
	items     domain.ItemRepository
	lock      domain.SyncLock
	cache     domain.CatalogCache
	publisher domain.EventPublisher
	metrics   *metrics.SyncMetrics
	clock     clockwork.Clock
	lockTTL   time.Duration
}

// NewSyncJob creates a sync job. cache, publisher and m may be nil.
func NewSyncJob(source domain.ItemSource, items domain.ItemRepository, lock domain.SyncLock, cache domain.CatalogCache, publisher domain.EventPublisher, m *metrics.SyncMetrics, clock clockwork.Clock, lockTTL time.Duration) *SyncJob {
	return &SyncJob{
		source:    source,
		items:     items,
		lock:      lock,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
		lockTTL:   lockTTL,
	}
}

// Run fetches the inventory listing, upserts each entry with its details and image,
// then hard-deletes stored items that were not synced. Per-item failures are collected
// in the result; only a failing listing, lease or cleanup fails the whole run.
func (j *SyncJob) Run(ctx context.Context, apiKey string) (*domain.SyncResult, error) {
	if apiKey == "" {
		return nil, domain.NewValidationError("key", "API key is required")
	}

	// The run must finish before the lease can expire and admit another sync.
	deadline := time.Now().Add(j.lockTTL)
	release, err := j.lock.TryAcquire(ctx, j.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			j.recordRun("skipped", nil)
		}
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := j.clock.Now()
	result, err := j.run(runCtx, apiKey)
	if j.metrics != nil {
		j.metrics.Duration.Observe(j.clock.Since(start).Seconds())
	}
	if err != nil {
		j.recordRun("failed", nil)
		// Items written before the failure must not be hidden by a cached listing.
		j.invalidateCatalog(context.WithoutCancel(ctx))
		return nil, err
	}

	outcome := "success"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	j.recordRun(outcome, result)

	slog.Info("Catalog sync finished",
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed,
		"total", result.Total,
		"errors", len(result.Errors),
		"duration", j.clock.Since(start))

	j.invalidateCatalog(context.WithoutCancel(ctx))
	if j.publisher != nil {
		if err := j.publisher.PublishCatalogChanged(ctx, domain.CatalogChanged{Reason: "sync"}); err != nil {
			slog.Error("Failed to publish catalog change", "reason", "sync", "error", err)
		}
	}

	return result, nil
}

func (j *SyncJob) run(ctx context.Context, apiKey string) (*domain.SyncResult, error) {
	listing, err := j.source.DisplayItems(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch display items: %w", err)
	}

	result := &domain.SyncResult{Total: len(listing)}
	synced := make([]int64, 0, len(listing))

	for _, entry := range listing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		created, failure := j.syncItem(ctx, apiKey, entry)
		if failure != "" {
			result.Errors = append(result.Errors, failure)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		synced = append(synced, entry.UID)
	}

	removed, err := j.items.DeleteExceptUIDs(ctx, synced)
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale items: %w", err)
	}
	result.Removed = removed

	return result, nil
}

// syncItem returns the per-item error line reported to the caller, or "" on success.
func (j *SyncJob) syncItem(ctx context.Context, apiKey string, entry domain.DisplayItem) (bool, string) {
	details, err := j.source.ItemDetails(ctx, apiKey, entry.UID)
	if err != nil {
		return false, detailsFailure(entry.UID, err)
	}

	image, err := j.source.ItemImage(ctx, apiKey, entry.ID, entry.UID)
	if err != nil {
		slog.Warn("Failed to fetch item image", "torn_id", entry.ID, "uid", entry.UID, "error", err)
		image = nil
	}

	created, err := j.items.UpsertByUID(ctx, toSyncedItem(entry, details, image))
	if err != nil {
		return false, fmt.Sprintf("Error processing item %d: %v", entry.UID, err)
	}
	return created, ""
}

func detailsFailure(uid int64, err error) string {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.Message != "":
			return fmt.Sprintf("Error for UID %d: %s", uid, upstream.Message)
		case upstream.StatusCode != 0:
			return fmt.Sprintf("Failed to fetch details for UID %d", uid)
		}
	}
	return fmt.Sprintf("Error processing item %d: %v", uid, err)
}

func toSyncedItem(entry domain.DisplayItem, details *domain.ItemDetails, image *string) domain.SyncedItem {
	item := domain.SyncedItem{
		UID:         entry.UID,
		TornID:      entry.ID,
		Name:        entry.Name,
		Type:        entry.Type,
		Quantity:    entry.Quantity,
		Circulation: entry.Circulation,
		MarketPrice: entry.MarketPrice,
		Image:       image,
	}
	if details == nil {
		return item
	}

	item.SubType = nonEmpty(details.SubType)
	item.Rarity = nonEmpty(details.Rarity)
	item.Damage = nonZero(details.Stats.Damage)
	item.Accuracy = nonZero(details.Stats.Accuracy)
	item.Armor = nonZero(details.Stats.Armor)
	item.Quality = nonZero(details.Stats.Quality)
	if len(details.Bonuses) > 0 {
		if raw, err := json.Marshal(details.Bonuses); err == nil {
			item.Bonuses = raw
		}
	}
	return item
}

func (j *SyncJob) invalidateCatalog(ctx context.Context) {
	if j.cache == nil {
		return
	}
	if err := j.cache.Invalidate(ctx); err != nil {
		slog.Warn("Failed to invalidate catalog cache", "error", err)
	}
}

func (j *SyncJob) recordRun(outcome string, result *domain.SyncResult) {
	if j.metrics == nil {
		return
	}
	j.metrics.Runs.WithLabelValues(outcome).Inc()
	if result == nil {
		return
	}
	j.metrics.Items.WithLabelValues("created").Add(float64(result.Created))
	j.metrics.Items.WithLabelValues("updated").Add(float64(result.Updated))
	j.metrics.Items.WithLabelValues("removed").Add(float64(result.Removed))
	j.metrics.Items.WithLabelValues("error").Add(float64(len(result.Errors)))
	j.metrics.LastRun.Set(float64(j.clock.Now().Unix()))
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// Zero stats are stored as unknown.
func nonZero(f *float64) *float64 {
	if f == nil || *f == 0 {
		return nil
	}
	return f
}
