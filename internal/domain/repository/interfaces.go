package repository

import (
	"context"
	"time"

	"FinLab/internal/domain/models"
)

// ReportPublisher emits run summaries to downstream consumers.
type ReportPublisher interface {
	PublishRun(ctx context.Context, res *models.RunResult) error
	PublishFailure(ctx context.Context, item models.BatchItem) error
	Close() error
}

// SetCache stores materialized indicator sets under a content hash. Writes are
// insert-if-absent: the first writer wins and later writers read its value.
type SetCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (stored bool, err error)
	Invalidate(ctx context.Context, key string) error
}

type Metrics interface {
	RecordStage(stage string, d time.Duration, err error)
	RecordDegenerateFolds(ticker string, n int)
	RecordMatrixRows(ticker string, rows int)
	RecordCache(hit bool)
	RecordError(kind string)
}
