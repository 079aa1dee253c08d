package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	applogger "FinLab/pkg/logger"
)

// Runner runs the pipeline for one ticker.
type Runner interface {
	Run(ctx context.Context, p RunParams) (*models.RunResult, error)
}

// BatchRunner runs independent tickers concurrently. One ticker failing never
// stops the others; failures come back as items carrying the failed stage.
type BatchRunner struct {
	runner    Runner
	limit     int
	publisher domrepo.ReportPublisher
	l         *applogger.Logger
}

func NewBatchRunner(r Runner, limit int, pub domrepo.ReportPublisher, l *applogger.Logger) *BatchRunner {
	if limit < 1 {
		limit = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &BatchRunner{runner: r, limit: limit, publisher: pub, l: l}
}

// Run returns one item per ticker in input order. base supplies every
// parameter except the ticker.
func (b *BatchRunner) Run(ctx context.Context, base RunParams, tickers []string) []models.BatchItem {
	start := time.Now()
	items := make([]models.BatchItem, len(tickers))

	var g errgroup.Group
	g.SetLimit(b.limit)
	for i, t := range tickers {
		g.Go(func() error {
			p := base
			p.Ticker = t
			items[i] = b.one(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if it.Error != "" {
			failed++
		}
	}
	b.l.Info("batch complete",
		applogger.Int("tickers", len(tickers)),
		applogger.Int("failed", failed),
		applogger.Duration("duration_ms", time.Since(start)))
	return items
}

func (b *BatchRunner) one(ctx context.Context, p RunParams) models.BatchItem {
	item := models.BatchItem{Ticker: p.Ticker}
	res, err := b.runner.Run(ctx, p)
	if err != nil {
		item.Stage = StageOf(err)
		item.Error = err.Error()
		if b.publisher != nil {
			if perr := b.publisher.PublishFailure(ctx, item); perr != nil {
				b.l.Warn("publish failure report", applogger.String("ticker", p.Ticker), applogger.Error(perr))
			}
		}
		return item
	}
	item.Result = res
	if b.publisher != nil {
		if perr := b.publisher.PublishRun(ctx, res); perr != nil {
			b.l.Warn("publish run report", applogger.String("ticker", p.Ticker), applogger.Error(perr))
		}
	}
	return item
}
