package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/jonboulle/clockwork"
)

const nextTickRetryDelay = 30 * time.Second

// SyncRunner is implemented by SyncJob.
type SyncRunner interface {
	Run(ctx context.Context, apiKey string) (*domain.SyncResult, error)
}

// SyncScheduler runs the sync job at every tick of a cron expression.
type SyncScheduler struct {
	runner SyncRunner
	expr   string
	apiKey string
	clock  clockwork.Clock
}

func NewSyncScheduler(runner SyncRunner, expr, apiKey string, clock clockwork.Clock) (*SyncScheduler, error) {
	if !gronx.IsValid(expr) {
		return nil, errors.New("invalid cron expression: " + expr)
	}
	return &SyncScheduler{runner: runner, expr: expr, apiKey: apiKey, clock: clock}, nil
}

// Run blocks until ctx is cancelled.
func (s *SyncScheduler) Run(ctx context.Context) {
	slog.Info("Sync scheduler started", "schedule", s.expr)

	for {
		now := s.clock.Now().UTC()
		wait := nextTickRetryDelay
		next, err := gronx.NextTickAfter(s.expr, now, false)
		if err != nil {
			slog.Error("Failed to compute next sync tick", "schedule", s.expr, "error", err)
		} else {
			wait = next.Sub(now)
		}

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Sync scheduler stopped")
			return
		case <-timer.Chan():
		}

		if err == nil {
			s.runOnce(ctx)
		}
	}
}

func (s *SyncScheduler) runOnce(ctx context.Context) {
	result, err := s.runner.Run(ctx, s.apiKey)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		slog.Info("Scheduled sync skipped, another sync is running")
	case err != nil:
		slog.Error("Scheduled sync failed", "error", err)
	default:
		slog.Info("Scheduled sync completed", "created", result.Created, "updated", result.Updated, "removed", result.Removed)
	}
}
