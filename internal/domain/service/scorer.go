package service

import "context"

// ScoreRequest is one fold's worth of model input.
type ScoreRequest struct {
	Ticker   string
	ModelID  string
	Fold     int
	Features []string
	Train    [][]float64
	Labels   []string
	Test     [][]float64
}

// Scorer is an external classifier returning one probability per test row.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) ([]float64, error)
}
