package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const syncLockKey = "sync:lock"

// Deletes the lease only if this owner still holds it.
var releaseLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// SyncLock is a Redis lease that keeps sync runs from overlapping across instances.
type SyncLock struct {
	rdb goredis.Cmdable
}

var _ domain.SyncLock = (*SyncLock)(nil)

func NewSyncLock(rdb goredis.Cmdable) *SyncLock {
	return &SyncLock{rdb: rdb}
}

func (l *SyncLock) TryAcquire(ctx context.Context, ttl time.Duration) (func(context.Context), error) {
	owner := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, syncLockKey, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSyncInProgress
	}

	release := func(ctx context.Context) {
		if err := releaseLockScript.Run(ctx, l.rdb, []string{syncLockKey}, owner).Err(); err != nil {
			slog.Warn("Failed to release sync lock", "owner", owner, "error", err)
		}
	}
	return release, nil
}
