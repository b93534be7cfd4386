package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/library-lending/internal/port"
)

const (
	requestKeyPrefix     = "lending:request:"
	defaultRequestKeyTTL = 24 * time.Hour
)

// RedisAdapter claims borrow request keys with SETNX so that replicas of
// the server share one view of submitted requests.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

var _ port.RequestGuard = (*RedisAdapter)(nil)

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultRequestKeyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, requestKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, requestKeyPrefix+key).Err()
}
