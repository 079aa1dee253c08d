package usecase

import (
	"context"
	"errors"
	"fmt"

	"FinLab/internal/domain/models"
	"FinLab/internal/services/evaluator"
	"FinLab/internal/services/indicators"
	"FinLab/internal/services/labels"
	"FinLab/internal/services/splitter"
)

// Pipeline stages, in execution order.
const (
	StageLoad     = "load"
	StageBuilder  = "builder"
	StageLabel    = "label"
	StageSplit    = "split"
	StageScore    = "score"
	StageEvaluate = "evaluate"
	StagePersist  = "persist"
)

// Error kinds.
const (
	KindConfig   = "config"
	KindData     = "data"
	KindProvider = "provider"
	KindTimeout  = "timeout"
	KindInternal = "internal"
)

var (
	// ErrConfig marks run parameters rejected before any computation.
	ErrConfig = errors.New("invalid run config")
	// ErrNoData is returned when the provider has no bars in the range.
	ErrNoData = errors.New("no bars in range")
)

// StageError identifies where a run failed. Fold is -1 outside per-fold work.
type StageError struct {
	Stage   string
	Ticker  string
	ModelID string
	Fold    int
	Kind    string
	Err     error
}

func (e *StageError) Error() string {
	if e.Fold >= 0 {
		return fmt.Sprintf("%s %s fold %d (%s): %v", e.Stage, e.Ticker, e.Fold, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Stage, e.Ticker, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage, ticker, modelID string, fold int, err error) *StageError {
	return &StageError{Stage: stage, Ticker: ticker, ModelID: modelID, Fold: fold, Kind: kindOf(stage, err), Err: err}
}

func kindOf(stage string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrConfig), errors.Is(err, indicators.ErrConfig),
		errors.Is(err, splitter.ErrConfig), errors.Is(err, evaluator.ErrConfig),
		errors.Is(err, labels.ErrHorizon):
		return KindConfig
	case errors.Is(err, ErrNoData), errors.Is(err, models.ErrDuplicateTimestamp),
		errors.Is(err, models.ErrUnparseableTimestamp):
		return KindData
	case stage == StageLoad || stage == StageScore || stage == StagePersist:
		return KindProvider
	default:
		return KindInternal
	}
}

// StageOf returns the failed stage of err, or "" when err carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
