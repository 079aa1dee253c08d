package cache

import (
	"context"
	"time"
)

// LayeredCache reads memory first, then redis, and keeps whatever redis holds
// as the canonical value so every process agrees on the first write.
type LayeredCache struct {
	mem    *MemoryCache
	shared *RedisCache
}

func NewLayeredCache(mem *MemoryCache, shared *RedisCache) *LayeredCache {
	return &LayeredCache{mem: mem, shared: shared}
}

func (l *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := l.mem.Get(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := l.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_, _ = l.mem.SetIfAbsent(ctx, key, b, 0)
	return b, true, nil
}

func (l *LayeredCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := l.shared.SetIfAbsent(ctx, key, value, ttl)
	if err != nil {
		return false, err
	}
	if stored {
		_, _ = l.mem.SetIfAbsent(ctx, key, value, ttl)
	}
	return stored, nil
}

func (l *LayeredCache) Invalidate(ctx context.Context, key string) error {
	_ = l.mem.Invalidate(ctx, key)
	return l.shared.Invalidate(ctx, key)
}

func (l *LayeredCache) Close() error { return l.shared.Close() }
