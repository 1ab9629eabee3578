package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gilrm92/trading-spot/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Fixed window: the first attempt starts the window, later attempts only count.
// Returns {count, remaining window in ms}.
var loginAttemptScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// LoginLimiter counts login attempts per client key, shared across instances.
type LoginLimiter struct {
	rdb         goredis.Scripter
	maxAttempts int
	window      time.Duration
}

var _ domain.LoginLimiter = (*LoginLimiter)(nil)

func NewLoginLimiter(rdb goredis.Scripter, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		rdb:         rdb,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *LoginLimiter) Attempt(ctx context.Context, clientKey string) (domain.LoginDecision, error) {
	res, err := loginAttemptScript.Run(ctx, l.rdb, []string{loginAttemptsKey(clientKey)}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.LoginDecision{}, fmt.Errorf("failed to count login attempt: %w", err)
	}
	if len(res) != 2 {
		return domain.LoginDecision{}, fmt.Errorf("unexpected login limiter reply: %v", res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count <= l.maxAttempts {
		return domain.LoginDecision{Allowed: true, Remaining: l.maxAttempts - count}, nil
	}
	return domain.LoginDecision{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
}

func loginAttemptsKey(clientKey string) string {
	return "login:attempts:" + clientKey
}
