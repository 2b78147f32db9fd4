package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// RedisLimiter allows perMinute calls per identifier in fixed one-minute
// windows. The window starts at the first call.
type RedisLimiter struct {
	db        *redis.Client
	name      string
	perMinute int64
	failOpen  bool
}

type LimiterConfig struct {
	Name      string
	PerMinute int64
	// FailOpen admits requests when redis is unreachable.
	FailOpen bool
}

func NewRedisLimiter(db *redis.Client, cfg LimiterConfig) *RedisLimiter {
	return &RedisLimiter{
		db:        db,
		name:      cfg.Name,
		perMinute: cfg.PerMinute,
		failOpen:  cfg.FailOpen,
	}
}

// Allow counts one call for identifier. On a redis error the decision is
// the configured fail-open value and the error is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := keyPrefix + "ratelimit:" + l.name + ":" + identifier

	var incr *redis.IntCmd
	_, err := l.db.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return l.failOpen, err
	}

	return incr.Val() <= l.perMinute, nil
}
