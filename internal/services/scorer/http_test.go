package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domsvc "FinLab/internal/domain/service"
)

func TestHTTPScorerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/score", r.URL.Path)
		var in scoreReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "SPY", in.Ticker)
		assert.Equal(t, []string{"up", "down"}, in.TrainY)
		out := make([]float64, len(in.TestX))
		for i := range out {
			out[i] = 0.5 + float64(i)/10
		}
		_ = json.NewEncoder(w).Encode(scoreResp{Probabilities: out})
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, WithPath("/v1/score"))
	p, err := s.Score(context.Background(), domsvc.ScoreRequest{
		Ticker: "SPY", Fold: 1, Features: []string{"rsi_14"},
		Train:  [][]float64{{1}, {2}}, Labels: []string{"up", "down"},
		Test:   [][]float64{{3}, {4}, {5}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.6, 0.7}, p)
}

func TestHTTPScorerRejectsShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"probabilities":[0.1]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPScorer(srv.URL).Score(context.Background(), domsvc.ScoreRequest{Test: [][]float64{{1}, {2}}})
	assert.ErrorIs(t, err, ErrResponse)
}

func TestHTTPScorerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"probabilities":[0.9]}`))
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, WithAttempts(2), WithTimeout(time.Second))
	p, err := s.Score(context.Background(), domsvc.ScoreRequest{Test: [][]float64{{1}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9}, p)
	assert.Equal(t, int32(2), calls.Load())
}
