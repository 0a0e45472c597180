// Package ratelimit is an optional per-tenant fixed-window limiter backed by
// Redis. Window keys carry a TTL so eviction is explicit; nothing
// accumulates in process memory and nothing outlives its window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// New returns nil when Redis is absent or the limit is non-positive; callers
// treat a nil Limiter as disabled.
func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	if rdb == nil || limit <= 0 {
		return nil
	}
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow counts one call for the tenant's current window. An infrastructure
// error is returned to the caller, which fails open (the upstream still
// enforces its own quotas).
func (l *Limiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	slot := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("agw:rl:%s:%d", tenantID, slot)
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		// First hit in the window sets the TTL; one extra second covers slot
		// boundary skew.
		l.rdb.Expire(ctx, key, l.window+time.Second)
	}
	return n <= int64(l.limit), nil
}
