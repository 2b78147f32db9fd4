package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/judgehub/internal/auth"
)

var _ auth.Revoker = (*RedisRevoker)(nil)

// RedisRevoker keeps one key per revoked token id, expiring with the token.
type RedisRevoker struct {
	db *redis.Client
}

func NewRedisRevoker(db *redis.Client) *RedisRevoker {
	return &RedisRevoker{db: db}
}

func revokedKey(tokenID string) string {
	return keyPrefix + "revoked:" + tokenID
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.db.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("cache: revoking token: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.db.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: checking revocation: %w", err)
	}
	return n > 0, nil
}
