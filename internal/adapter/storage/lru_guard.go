package storage

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rl1809/library-lending/internal/port"
)

const defaultLRUGuardSize = 10000

// LRUGuard is the in-process RequestGuard used when no Redis is configured.
// Keys expire after ttl or when evicted by newer keys.
type LRUGuard struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

var _ port.RequestGuard = (*LRUGuard)(nil)

func NewLRUGuard(size int, ttl time.Duration) *LRUGuard {
	if size <= 0 {
		size = defaultLRUGuardSize
	}
	if ttl <= 0 {
		ttl = defaultRequestKeyTTL
	}
	return &LRUGuard{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (g *LRUGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cache.Contains(key) {
		return false, nil
	}
	g.cache.Add(key, struct{}{})
	return true, nil
}

func (g *LRUGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cache.Remove(key)
	return nil
}
