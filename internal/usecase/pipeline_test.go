package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	domsvc "FinLab/internal/domain/service"
	"FinLab/internal/service/cache"
	"FinLab/internal/services/evaluator"
	"FinLab/internal/services/features"
	"FinLab/internal/services/indicators"
	"FinLab/internal/services/session"
)

var day0 = time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)

// syntheticBars returns days sessions of seven hourly bars with a score column.
func syntheticBars(days int) []models.Bar {
	var out []models.Bar
	prev := 100.0
	i := 0
	for d := 0; d < days; d++ {
		for h := 0; h < 7; h++ {
			c := 100 + 5*math.Sin(float64(i)/10) + 0.05*float64(i)
			out = append(out, models.Bar{
				Timestamp: day0.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour),
				Open:      prev,
				High:      math.Max(prev, c) + 0.2,
				Low:       math.Min(prev, c) - 0.2,
				Close:     c,
				Volume:    1000 + float64(i%7)*10,
				Extra:     map[string]float64{"score": 0.5 + 0.4*math.Sin(float64(i)*0.7)},
			})
			prev = c
			i++
		}
	}
	return out
}

type fakeBars struct {
	bars []models.Bar
	err  map[string]error
}

func (f *fakeBars) GetBars(_ context.Context, ticker string, _, _ time.Time, _ domrepo.Cadence) ([]models.Bar, error) {
	if err := f.err[ticker]; err != nil {
		return nil, err
	}
	return f.bars, nil
}

type fakeScorer struct {
	mu    sync.Mutex
	calls []domsvc.ScoreRequest
}

func (s *fakeScorer) Score(_ context.Context, req domsvc.ScoreRequest) ([]float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	out := make([]float64, len(req.Test))
	for i := range out {
		out[i] = 0.6
	}
	return out, nil
}

type memSink struct {
	mu      sync.Mutex
	matrix  map[string]int
	results []*models.RunResult
}

func (m *memSink) SaveMatrix(_ context.Context, runID string, f *models.Frame, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matrix == nil {
		m.matrix = map[string]int{}
	}
	m.matrix[runID] = f.Len()
	return nil
}

func (m *memSink) SaveResult(_ context.Context, res *models.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func testOptions() Options {
	return Options{
		Label:         LabelForward,
		ForwardDays:   1,
		Band:          0.001,
		CloseOpenBand: 0.001,
		Folds:         4,
		Embargo:       2,
		Purge:         true,
		MinTrain:      10,
		Thresholds:    []float64{0.3, 0.5, 0.7},
		Direction:     evaluator.AtOrAbove,
		Side:          evaluator.Long,
		Cadence:       domrepo.CadenceHourly,
		Eps:           evaluator.DefaultEps,
		MinTrades:     3,
		ScoreColumn:   "score",
	}
}

var testIndicators = []models.IndicatorDescriptor{
	{Name: "sma", Params: map[string]any{"period": 3}},
	{Name: "rsi", Params: map[string]any{"period": 5}},
}

func newTestPipeline(bars domrepo.BarProvider, opts Options, extra ...PipelineOption) *Pipeline {
	b := features.NewBuilder(indicators.Default(), session.UTC(), features.Config{DistanceMax: 2}, nil)
	r := NewIndicatorSetResolver(b, nil, cache.NewMemoryCache(), 0, nil, nil)
	return NewPipeline(bars, b, r, session.UTC(), opts, nil, extra...)
}

func TestPipelineRunWithScoreColumn(t *testing.T) {
	sink := &memSink{}
	pl := newTestPipeline(&fakeBars{bars: syntheticBars(40)}, testOptions(), WithSinks(sink, sink))

	res, err := pl.Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators, Persist: true})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "label_fwd_1d", res.Label)
	assert.Greater(t, res.Rows, 270)
	assert.Less(t, res.Rows, 280)
	assert.Contains(t, res.Features, "sma_3")
	assert.Contains(t, res.Features, features.ColHourOfDay)
	assert.NotContains(t, res.Features, "score")
	assert.NotContains(t, res.Features, "fwd_ret_1d")
	assert.NotContains(t, res.Features, "close")

	require.Len(t, res.Folds, 4)
	for _, f := range res.Folds {
		assert.Greater(t, f.Purged, 0, "fold %d", f.Index)
		assert.GreaterOrEqual(t, f.Embargoed, 2, "fold %d", f.Index)
	}
	require.NotNil(t, res.Evaluation)
	require.Len(t, res.Evaluation.Folds, 4)
	for _, fe := range res.Evaluation.Folds {
		assert.Len(t, fe.Results, 3)
		assert.GreaterOrEqual(t, fe.Results[0].Trades, fe.Results[2].Trades)
	}
	require.Len(t, res.Evaluation.Summary, 3)

	assert.Equal(t, res.Rows, sink.matrix[res.RunID])
	require.Len(t, sink.results, 1)
	assert.Equal(t, res.RunID, sink.results[0].RunID)
}

func TestPipelineSendsFoldsToScorer(t *testing.T) {
	opts := testOptions()
	opts.ScoreColumn = ""
	sc := &fakeScorer{}
	pl := newTestPipeline(&fakeBars{bars: syntheticBars(40)}, opts, WithScorer(sc))

	res, err := pl.Run(context.Background(), RunParams{Ticker: "SPY", ModelID: "m1", Indicators: testIndicators})
	require.NoError(t, err)

	require.Len(t, sc.calls, 4)
	for i, c := range sc.calls {
		assert.Equal(t, i, c.Fold)
		assert.Equal(t, "m1", c.ModelID)
		assert.Equal(t, res.Features, c.Features)
		assert.Equal(t, len(c.Train), len(c.Labels))
		assert.Equal(t, res.Folds[i].TestSize, len(c.Test))
		for _, y := range c.Labels {
			assert.Contains(t, []string{"UP", "DOWN", "FLAT"}, y)
		}
	}
	// every test row scores 0.6: all trade at 0.5, none at 0.7
	for _, fe := range res.Evaluation.Folds {
		assert.Equal(t, 0, fe.Results[2].Trades)
		assert.Contains(t, fe.Results[2].Flags, models.FlagNoTrades)
	}
}

func TestPipelineCloseToOpenLabel(t *testing.T) {
	pl := newTestPipeline(&fakeBars{bars: syntheticBars(30)}, testOptions())
	res, err := pl.Run(context.Background(), RunParams{Ticker: "QQQ", Label: LabelCloseToOpen, Indicators: testIndicators})
	require.NoError(t, err)
	assert.Equal(t, "label_close_to_open", res.Label)
}

func TestPipelineHonorsExplicitZeroEmbargo(t *testing.T) {
	pl := newTestPipeline(&fakeBars{bars: syntheticBars(40)}, testOptions())

	zero := 0
	res, err := pl.Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators, Embargo: &zero})
	require.NoError(t, err)
	require.Len(t, res.Folds, 4)
	for _, f := range res.Folds {
		assert.Equal(t, 0, f.Embargoed, "fold %d", f.Index)
	}

	res, err = pl.Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	require.NoError(t, err)
	for _, f := range res.Folds {
		assert.GreaterOrEqual(t, f.Embargoed, 2, "fold %d", f.Index)
	}
}

func TestPipelineReportsDroppedRows(t *testing.T) {
	bars := syntheticBars(40)
	for i := range bars {
		if i < 100 || i >= 150 {
			bars[i].Extra["iv"] = 0.2 + 0.001*float64(i%9)
		}
	}
	pl := newTestPipeline(&fakeBars{bars: bars}, testOptions())

	res, err := pl.Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	require.NoError(t, err)
	assert.Contains(t, res.Features, "iv")
	assert.GreaterOrEqual(t, res.DroppedRows, 50)

	clean := newTestPipeline(&fakeBars{bars: syntheticBars(40)}, testOptions())
	base, err := clean.Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	require.NoError(t, err)
	assert.Greater(t, base.DroppedRows, 0, "warm-up rows")
	assert.Equal(t, base.DroppedRows+50, res.DroppedRows)
	assert.Equal(t, base.Rows-50, res.Rows)
}

func TestPipelineStageErrors(t *testing.T) {
	boom := errors.New("connection refused")
	bars := &fakeBars{bars: syntheticBars(20), err: map[string]error{"BAD": boom}}

	cases := []struct {
		name  string
		opts  func(*Options)
		ctx   func() context.Context
		p     RunParams
		stage string
		kind  string
	}{
		{name: "missing ticker", p: RunParams{Indicators: testIndicators}, stage: StageLoad, kind: KindConfig},
		{name: "provider down", p: RunParams{Ticker: "BAD", Indicators: testIndicators}, stage: StageLoad, kind: KindProvider},
		{name: "bad cadence", p: RunParams{Ticker: "SPY", Cadence: "weekly", Indicators: testIndicators}, stage: StageLoad, kind: KindConfig},
		{name: "unknown indicator", p: RunParams{Ticker: "SPY", Indicators: []models.IndicatorDescriptor{{Name: "nope"}}}, stage: StageBuilder, kind: KindConfig},
		{name: "bad param", p: RunParams{Ticker: "SPY", Indicators: []models.IndicatorDescriptor{{Name: "sma", Params: map[string]any{"period": "x"}}}}, stage: StageBuilder, kind: KindConfig},
		{name: "too many folds", p: RunParams{Ticker: "SPY", Folds: 500, Indicators: testIndicators}, stage: StageSplit, kind: KindConfig},
		{name: "no scorer", opts: func(o *Options) { o.ScoreColumn = "" }, p: RunParams{Ticker: "SPY", Indicators: testIndicators}, stage: StageScore, kind: KindConfig},
		{
			name: "cancelled",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			p:     RunParams{Ticker: "SPY", Indicators: testIndicators},
			stage: StageLoad,
			kind:  KindTimeout,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions()
			if tc.opts != nil {
				tc.opts(&opts)
			}
			ctx := context.Background()
			if tc.ctx != nil {
				ctx = tc.ctx()
			}
			res, err := newTestPipeline(bars, opts).Run(ctx, tc.p)
			require.Error(t, err)
			assert.Nil(t, res)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.stage, se.Stage)
			assert.Equal(t, tc.kind, se.Kind)
		})
	}
}

func TestPipelineRejectsDuplicatesWhenConfigured(t *testing.T) {
	bars := syntheticBars(20)
	bars = append(bars, bars[10])
	opts := testOptions()

	_, err := newTestPipeline(&fakeBars{bars: bars}, opts).Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	require.NoError(t, err)

	opts.RejectDuplicates = true
	_, err = newTestPipeline(&fakeBars{bars: bars}, opts).Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindData, se.Kind)
	assert.ErrorIs(t, err, models.ErrDuplicateTimestamp)
}

func TestPipelineIsDeterministic(t *testing.T) {
	bars := &fakeBars{bars: syntheticBars(30)}
	a, err := newTestPipeline(bars, testOptions()).Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	require.NoError(t, err)
	b, err := newTestPipeline(bars, testOptions()).Run(context.Background(), RunParams{Ticker: "SPY", Indicators: testIndicators})
	require.NoError(t, err)

	assert.Equal(t, a.Features, b.Features)
	assert.Equal(t, a.SetKey, b.SetKey)
	assert.Equal(t, a.Folds, b.Folds)
	assert.Equal(t, a.Evaluation, b.Evaluation)
}
