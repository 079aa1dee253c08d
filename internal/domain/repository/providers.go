package repository

import (
	"context"
	"time"

	"FinLab/internal/domain/models"
)

// BarProvider supplies raw bars. Errors abort the run for that ticker.
type BarProvider interface {
	GetBars(ctx context.Context, ticker string, from, to time.Time, cadence Cadence) ([]models.Bar, error)
}

// FlowProvider supplies per-distance option flow aligned to bars.
type FlowProvider interface {
	GetFlow(ctx context.Context, ticker string, from, to time.Time, cadence Cadence) ([]models.FlowRecord, error)
}

// MatrixSink persists the labeled feature matrix of a run.
type MatrixSink interface {
	SaveMatrix(ctx context.Context, runID string, frame *models.Frame, features []string) error
}

// ResultSink persists fold and threshold results of a run.
type ResultSink interface {
	SaveResult(ctx context.Context, res *models.RunResult) error
}

// IndicatorSetLoader resolves an indicator-set reference into descriptors.
type IndicatorSetLoader interface {
	Load(ctx context.Context, ref string) (*models.IndicatorSet, error)
}
