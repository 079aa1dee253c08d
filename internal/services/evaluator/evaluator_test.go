package evaluator

import (
	"math"
	"testing"

	"FinLab/internal/domain/models"
	"FinLab/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fold(idx int, test ...int) models.Fold {
	return models.Fold{Index: idx, Test: test, TestSize: len(test), TrainSize: 10}
}

// Three folds of four test rows each, scores chosen so nothing in fold 2
// reaches 0.7.
func threeFolds() ([]FoldInput, []float64) {
	returns := []float64{
		0.01, -0.02, 0.03, 0.005,
		0.02, 0.01, -0.01, 0.015,
		-0.005, 0.01, 0.02, -0.01,
	}
	scores := []float64{
		0.55, 0.45, 0.75, 0.62,
		0.72, 0.66, 0.51, 0.58,
		0.52, 0.61, 0.65, 0.40,
	}
	return []FoldInput{
		{Fold: fold(0, 0, 1, 2, 3), Scores: scores},
		{Fold: fold(1, 4, 5, 6, 7), Scores: scores},
		{Fold: fold(2, 8, 9, 10, 11), Scores: scores},
	}, returns
}

func TestSweepReportsZeroTradeThresholds(t *testing.T) {
	in, returns := threeFolds()
	ev, err := Sweep(in, returns, Config{Thresholds: []float64{0.5, 0.6, 0.7}, Cadence: repository.CadenceNone, MinTrades: 1})
	require.NoError(t, err)
	require.Len(t, ev.Folds, 3)

	f2 := ev.Folds[2]
	require.Len(t, f2.Results, 3)
	assert.Equal(t, 3, f2.Results[0].Trades)
	assert.Equal(t, 2, f2.Results[1].Trades)

	zero := f2.Results[2]
	assert.Equal(t, 0.7, zero.Threshold)
	assert.Equal(t, 0, zero.Trades)
	assert.Equal(t, 0.0, zero.Sharpe)
	assert.Equal(t, 0.0, zero.Cumulative)
	assert.True(t, zero.Degenerate)
	assert.Contains(t, zero.Flags, models.FlagNoTrades)

	// fold 0: 0.5 -> rows 0,2,3 ; 0.6 -> 2,3 ; 0.7 -> 2
	counts := []int{ev.Folds[0].Results[0].Trades, ev.Folds[0].Results[1].Trades, ev.Folds[0].Results[2].Trades}
	assert.Equal(t, []int{3, 2, 1}, counts)

	assert.Equal(t, 2, ev.Summary[2].TotalTrades)
	assert.Equal(t, 2, ev.Summary[2].FoldsWithTrades)
	assert.Equal(t, 10, ev.Summary[0].TotalTrades)
}

func TestSharpeAndCumulativeHandComputed(t *testing.T) {
	rs := []float64{0.02, -0.01, 0.03, 0.01, -0.02}
	scores := []float64{0.9, 0.9, 0.9, 0.9, 0.9}
	in := []FoldInput{{Fold: fold(0, 0, 1, 2, 3, 4), Scores: scores}}

	ev, err := Sweep(in, rs, Config{Thresholds: []float64{0.5}, Cadence: repository.CadenceDaily, MinTrades: 5})
	require.NoError(t, err)
	r := ev.Folds[0].Results[0]

	wantCum := 1.02*0.99*1.03*1.01*0.98 - 1
	assert.InDelta(t, wantCum, r.Cumulative, 1e-12)

	mean := 0.006
	var ss float64
	for _, x := range rs {
		ss += (x - mean) * (x - mean)
	}
	sd := math.Sqrt(ss / 4)
	assert.InDelta(t, mean, r.MeanReturn, 1e-12)
	assert.InDelta(t, sd, r.StdReturn, 1e-12)
	assert.InDelta(t, mean/(sd+DefaultEps)*math.Sqrt(252), r.Sharpe, 1e-9)
	assert.InDelta(t, 0.6, r.HitRate, 1e-12)
	assert.Empty(t, r.Flags)
	assert.False(t, r.Degenerate)
}

func TestCompound(t *testing.T) {
	assert.InDelta(t, 0.0, Compound(nil), 0)
	assert.InDelta(t, 0.1, Compound([]float64{0.1}), 1e-15)
	assert.InDelta(t, 1.1*0.9-1, Compound([]float64{0.1, -0.1}), 1e-15)
}

func TestAggregateBestIsMaxFoldSharpeAndFlagged(t *testing.T) {
	in, returns := threeFolds()
	ev, err := Sweep(in, returns, Config{Thresholds: []float64{0.5, 0.6, 0.7}, MinTrades: 2})
	require.NoError(t, err)

	require.NotNil(t, ev.Best)
	assert.Contains(t, ev.Best.Flags, models.FlagSingleFoldMax)
	for _, fe := range ev.Folds {
		require.NotNil(t, fe.Best)
		assert.LessOrEqual(t, fe.Best.Sharpe, ev.Best.Sharpe)
		for _, r := range fe.Results {
			assert.NotContains(t, r.Flags, models.FlagSingleFoldMax)
			if r.Trades > 0 {
				assert.LessOrEqual(t, r.Sharpe, fe.Best.Sharpe)
			}
		}
	}

	// fold 0 at 0.7 selects one winning trade: sky-high Sharpe, but flagged
	lucky := ev.Folds[0].Results[2]
	assert.Equal(t, 1, lucky.Trades)
	assert.Contains(t, lucky.Flags, models.FlagFewTrades)
	assert.Equal(t, lucky.Sharpe, ev.Best.Sharpe)

	require.NotNil(t, ev.BestRobust)
	assert.Empty(t, ev.BestRobust.Flags)
	assert.GreaterOrEqual(t, ev.BestRobust.Trades, 2)
}

func TestDegenerateAndUnscoredFoldsStayInResults(t *testing.T) {
	in, returns := threeFolds()
	in[1].Fold.Degenerate = true
	in[1].Fold.Reason = "empty training set"
	in[1].Scores = nil

	ev, err := Sweep(in, returns, Config{Thresholds: []float64{0.5, 0.6}})
	require.NoError(t, err)
	require.Len(t, ev.Folds, 3)
	f1 := ev.Folds[1]
	assert.True(t, f1.Degenerate)
	assert.Nil(t, f1.Best)
	for _, r := range f1.Results {
		assert.Equal(t, 0, r.Trades)
		assert.Contains(t, r.Flags, models.FlagDegenerate)
		assert.Contains(t, r.Flags, models.FlagNoTrades)
	}
}

func TestShortSideAndBelowDirection(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03}
	scores := []float64{0.2, 0.1, 0.8}
	in := []FoldInput{{Fold: fold(0, 0, 1, 2), Scores: scores}}

	cfg := Config{Thresholds: []float64{0.3}, Direction: AtOrBelow, Side: Short}
	ev, err := Sweep(in, returns, cfg)
	require.NoError(t, err)
	r := ev.Folds[0].Results[0]
	assert.Equal(t, 2, r.Trades)
	assert.InDelta(t, 0.99*1.02-1, r.Cumulative, 1e-12)
}

func TestNonFiniteRowsAreSkipped(t *testing.T) {
	returns := []float64{0.01, math.NaN(), 0.02}
	scores := []float64{math.NaN(), 0.9, 0.9}
	in := []FoldInput{{Fold: fold(0, 0, 1, 2), Scores: scores}}
	ev, err := Sweep(in, returns, Config{Thresholds: []float64{0.5}})
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Folds[0].Results[0].Trades)
}

func TestSweepRejectsBadConfig(t *testing.T) {
	in, returns := threeFolds()
	bad := []Config{
		{},
		{Thresholds: []float64{math.NaN()}},
		{Thresholds: []float64{0.5}, Direction: "sideways"},
		{Thresholds: []float64{0.5}, Side: "flat"},
		{Thresholds: []float64{0.5}, Cadence: "weekly"},
	}
	for _, c := range bad {
		_, err := Sweep(in, returns, c)
		assert.ErrorIs(t, err, ErrConfig)
	}

	in[0].Scores = []float64{0.1}
	_, err := Sweep(in, returns, Config{Thresholds: []float64{0.5}})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestPeriodsPerYear(t *testing.T) {
	assert.Equal(t, 1764.0, PeriodsPerYear(repository.CadenceHourly))
	assert.Equal(t, 252.0, PeriodsPerYear(repository.CadenceDaily))
	assert.Equal(t, 1.0, PeriodsPerYear(repository.CadenceNone))
}

func TestSingleTradeIsFlaggedWhateverMinTrades(t *testing.T) {
	returns := []float64{0.001, -0.004, 0.002, 0.003, -0.001}
	scores := []float64{0.95, 0.6, 0.7, 0.8, 0.65}
	in := []FoldInput{{Fold: fold(0, 0, 1, 2, 3, 4), Scores: scores}}

	for _, minTrades := range []int{0, 1} {
		ev, err := Sweep(in, returns, Config{Thresholds: []float64{0.5, 0.9}, Cadence: repository.CadenceHourly, MinTrades: minTrades})
		require.NoError(t, err)

		one := ev.Folds[0].Results[1]
		require.Equal(t, 1, one.Trades)
		assert.True(t, one.Degenerate)
		assert.Contains(t, one.Flags, models.FlagFewTrades)
		assert.Contains(t, one.Flags, models.FlagZeroVariance)

		require.NotNil(t, ev.BestRobust)
		assert.Equal(t, 0.5, ev.BestRobust.Threshold, "min_trades=%d", minTrades)
		assert.Equal(t, 5, ev.BestRobust.Trades)
	}
}

func TestIdenticalReturnsAreFlaggedZeroVariance(t *testing.T) {
	returns := []float64{0.0625, 0.0625, 0.0625}
	scores := []float64{0.9, 0.9, 0.9}
	ev, err := Sweep([]FoldInput{{Fold: fold(0, 0, 1, 2), Scores: scores}}, returns, Config{Thresholds: []float64{0.5}})
	require.NoError(t, err)

	r := ev.Folds[0].Results[0]
	assert.Equal(t, 3, r.Trades)
	assert.Equal(t, 0.0, r.StdReturn)
	assert.Contains(t, r.Flags, models.FlagZeroVariance)
	assert.NotContains(t, r.Flags, models.FlagFewTrades)
	assert.Nil(t, ev.BestRobust)
}
