package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestMemoryCacheFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	stored, err := c.SetIfAbsent(ctx, "k", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.SetIfAbsent(ctx, "k", []byte("second"), 0)
	require.NoError(t, err)
	assert.False(t, stored)

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", string(b))
}

func TestMemoryCacheExpiresOnInjectedClock(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(WithClock(clk.Now))

	_, err := c.SetIfAbsent(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)

	clk.Advance(59 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	stored, _ := c.SetIfAbsent(ctx, "k", []byte("again"), time.Minute)
	assert.True(t, stored)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	_, _ = c.SetIfAbsent(ctx, "k", []byte("v"), 0)
	require.NoError(t, c.Invalidate(ctx, "k"))

	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
	stored, _ := c.SetIfAbsent(ctx, "k", []byte("w"), 0)
	assert.True(t, stored)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(WithClock(clk.Now), WithMaxSize(2))

	_, _ = c.SetIfAbsent(ctx, "a", []byte("1"), 0)
	clk.Advance(time.Second)
	_, _ = c.SetIfAbsent(ctx, "b", []byte("2"), 0)
	clk.Advance(time.Second)
	_, _, _ = c.Get(ctx, "a")
	clk.Advance(time.Second)
	_, _ = c.SetIfAbsent(ctx, "c", []byte("3"), 0)

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	src := []byte("abc")
	_, _ = c.SetIfAbsent(ctx, "k", src, 0)
	src[0] = 'X'

	b, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(b))
	b[1] = 'Y'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCacheConcurrentWritersAgree(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := c.SetIfAbsent(ctx, "set", []byte(fmt.Sprint(i)), 0)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
