package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	applogger "FinLab/pkg/logger"
)

// Canonicalizer fills defaults into descriptors and validates them.
type Canonicalizer interface {
	Canonicalize(descs []models.IndicatorDescriptor) ([]models.IndicatorDescriptor, error)
}

// IndicatorSetResolver turns a set reference or inline descriptors into the
// canonical descriptor list and its content key. Canonical sets are cached
// write-once under the key: concurrent resolvers of the same set converge on
// the first stored value.
type IndicatorSetResolver struct {
	canon   Canonicalizer
	loader  domrepo.IndicatorSetLoader
	cache   domrepo.SetCache
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewIndicatorSetResolver(canon Canonicalizer, loader domrepo.IndicatorSetLoader, cache domrepo.SetCache, ttl time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *IndicatorSetResolver {
	if l == nil {
		l = applogger.Nop()
	}
	return &IndicatorSetResolver{canon: canon, loader: loader, cache: cache, ttl: ttl, metrics: metrics, l: l}
}

// Resolve prefers inline descriptors; otherwise ref is loaded.
func (r *IndicatorSetResolver) Resolve(ctx context.Context, ref string, inline []models.IndicatorDescriptor) (string, []models.IndicatorDescriptor, error) {
	descs := inline
	if len(descs) == 0 {
		if r.loader == nil {
			return "", nil, fmt.Errorf("%w: no indicators and no set loader", ErrConfig)
		}
		set, err := r.loader.Load(ctx, ref)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		descs = set.Indicators
	}

	canonical, err := r.canon.Canonicalize(descs)
	if err != nil {
		return "", nil, err
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", nil, fmt.Errorf("encode indicator set: %w", err)
	}
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	if r.cache == nil {
		return key, canonical, nil
	}
	if cached, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		r.record(true)
		var out []models.IndicatorDescriptor
		if err := json.Unmarshal(cached, &out); err == nil {
			return key, out, nil
		}
		r.l.Warn("cached indicator set unreadable, invalidating", applogger.String("key", key))
		_ = r.cache.Invalidate(ctx, key)
	} else if err != nil {
		r.l.Warn("indicator set cache get", applogger.String("key", key), applogger.Error(err))
	}
	r.record(false)

	stored, err := r.cache.SetIfAbsent(ctx, key, raw, r.ttl)
	if err != nil {
		r.l.Warn("indicator set cache set", applogger.String("key", key), applogger.Error(err))
		return key, canonical, nil
	}
	if !stored {
		r.l.Debug("indicator set already cached by another writer", applogger.String("key", key))
	}
	return key, canonical, nil
}

func (r *IndicatorSetResolver) record(hit bool) {
	if r.metrics != nil {
		r.metrics.RecordCache(hit)
	}
}
