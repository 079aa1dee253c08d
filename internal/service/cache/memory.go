package cache

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value    []byte
	expireAt time.Time
	usedAt   time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expireAt.IsZero() && !now.Before(it.expireAt)
}

// MemoryCache is a bounded in-process cache. Expiry is evaluated lazily
// against the injected clock; when full, the least recently used entry goes.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*item
	now     Clock
	maxSize int
}

type MemoryOption func(*MemoryCache)

func WithClock(c Clock) MemoryOption {
	return func(m *MemoryCache) { m.now = c }
}

func WithMaxSize(n int) MemoryOption {
	return func(m *MemoryCache) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	m := &MemoryCache{
		data:    make(map[string]*item),
		now:     time.Now,
		maxSize: 1000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	it, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	if it.expired(now) {
		delete(m.data, key)
		return nil, false, nil
	}
	it.usedAt = now
	return clone(it.value), true, nil
}

// SetIfAbsent stores value unless a live entry exists. ttl <= 0 never expires.
func (m *MemoryCache) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if it, ok := m.data[key]; ok && !it.expired(now) {
		return false, nil
	}
	if _, ok := m.data[key]; !ok && len(m.data) >= m.maxSize {
		m.evict(now)
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	m.data[key] = &item{value: clone(value), expireAt: exp, usedAt: now}
	return true, nil
}

func (m *MemoryCache) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// evict drops expired entries, or the least recently used one if none are.
func (m *MemoryCache) evict(now time.Time) {
	var oldest string
	var oldestAt time.Time
	dropped := false
	for k, it := range m.data {
		if it.expired(now) {
			delete(m.data, k)
			dropped = true
			continue
		}
		if oldest == "" || it.usedAt.Before(oldestAt) {
			oldest, oldestAt = k, it.usedAt
		}
	}
	if !dropped && oldest != "" {
		delete(m.data, oldest)
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
