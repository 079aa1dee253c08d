package usecase

import (
	"fmt"
	"time"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	"FinLab/pkg/util"
)

// ParamsFromRun converts a validated run request. A missing range ends at now
// and reaches back lookback.
func ParamsFromRun(req models.RunRequest, lookback time.Duration, now time.Time) (RunParams, error) {
	from, to, err := util.ParseRange(req.From, req.To, lookback, now)
	if err != nil {
		return RunParams{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return RunParams{
		Ticker:     req.Ticker,
		ModelID:    req.ModelID,
		From:       from,
		To:         to,
		Cadence:    domrepo.Cadence(req.Cadence),
		Label:      req.Label,
		Folds:      req.Folds,
		Embargo:    req.Embargo,
		Thresholds: req.Thresholds,
		Indicators: req.Indicators,
		Persist:    req.Persist,
	}, nil
}

// ParamsFromBatch converts a validated batch request into shared parameters.
func ParamsFromBatch(req models.BatchRequest, lookback time.Duration, now time.Time) (RunParams, error) {
	return ParamsFromRun(models.RunRequest{
		ModelID:    req.ModelID,
		From:       req.From,
		To:         req.To,
		Cadence:    req.Cadence,
		Label:      req.Label,
		Thresholds: req.Thresholds,
		Indicators: req.Indicators,
		Persist:    req.Persist,
	}, lookback, now)
}
