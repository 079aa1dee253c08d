// Package cache holds the indicator-set cache: an in-process memory layer with
// an injected clock, a redis layer, and a layered combination of both. Every
// implementation is write-once per key.
package cache

import (
	"errors"
	"time"

	"FinLab/internal/domain/repository"
)

var ErrClosed = errors.New("cache: closed")

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

var (
	_ repository.SetCache = (*MemoryCache)(nil)
	_ repository.SetCache = (*RedisCache)(nil)
	_ repository.SetCache = (*LayeredCache)(nil)
)
