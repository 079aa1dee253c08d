// Package scorer calls an external classifier over HTTP.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	domsvc "FinLab/internal/domain/service"
	xhttp "FinLab/pkg/http"
)

var ErrResponse = errors.New("scorer: malformed response")

type Option func(*HTTPScorer)

func WithTimeout(d time.Duration) Option {
	return func(s *HTTPScorer) { s.timeout = d }
}

func WithAttempts(n int) Option {
	return func(s *HTTPScorer) { s.attempts = n }
}

func WithPath(p string) Option {
	return func(s *HTTPScorer) { s.path = p }
}

// HTTPScorer posts one fold's train and test matrices and expects a
// probability per test row back.
type HTTPScorer struct {
	baseURL  string
	path     string
	timeout  time.Duration
	attempts int
	client   *xhttp.Client
}

func NewHTTPScorer(baseURL string, opts ...Option) *HTTPScorer {
	s := &HTTPScorer{baseURL: baseURL, path: "/score", timeout: 30 * time.Second, attempts: 2}
	for _, opt := range opts {
		opt(s)
	}
	s.client = xhttp.NewClient(xhttp.WithTimeout(s.timeout), xhttp.WithRetries(s.attempts, 100*time.Millisecond))
	return s
}

type scoreReq struct {
	Ticker   string      `json:"ticker"`
	ModelID  string      `json:"model_id"`
	Fold     int         `json:"fold"`
	Features []string    `json:"features"`
	TrainX   [][]float64 `json:"train_x"`
	TrainY   []string    `json:"train_y"`
	TestX    [][]float64 `json:"test_x"`
}

type scoreResp struct {
	Probabilities []float64 `json:"probabilities"`
}

func (s *HTTPScorer) Score(ctx context.Context, req domsvc.ScoreRequest) ([]float64, error) {
	if s.baseURL == "" {
		return nil, errors.New("scorer: base url not configured")
	}
	var resp scoreResp
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  "POST",
		URL:     s.baseURL + s.path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: scoreReq{
			Ticker:   req.Ticker,
			ModelID:  req.ModelID,
			Fold:     req.Fold,
			Features: req.Features,
			TrainX:   req.Train,
			TrainY:   req.Labels,
			TestX:    req.Test,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("score fold %d: %w", req.Fold, err)
	}
	if len(resp.Probabilities) != len(req.Test) {
		return nil, fmt.Errorf("%w: %d probabilities for %d rows", ErrResponse, len(resp.Probabilities), len(req.Test))
	}
	return resp.Probabilities, nil
}

var _ domsvc.Scorer = (*HTTPScorer)(nil)
