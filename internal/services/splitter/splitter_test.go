package splitter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(n int) []time.Time {
	out := make([]time.Time, n)
	t0 := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestFoldsAreDisjointOrderedAndEmbargoed(t *testing.T) {
	times := hourly(137)
	for k := 1; k <= 6; k++ {
		for e := 1; e <= 5; e++ {
			t.Run(fmt.Sprintf("k=%d e=%d", k, e), func(t *testing.T) {
				folds, err := Split(times, nil, Config{Folds: k, Embargo: e})
				require.NoError(t, err)
				require.Len(t, folds, k)

				next := folds[0].Test[0]
				for i, f := range folds {
					assert.Equal(t, i, f.Index)
					require.NotEmpty(t, f.Test)
					assert.Equal(t, next, f.Test[0], "test windows must be contiguous and increasing")
					next = f.Test[len(f.Test)-1] + 1
					assert.True(t, f.TestStart.Before(f.TestEnd) || f.TestSize == 1)

					start := f.Test[0]
					for _, j := range f.Train {
						assert.Greater(t, start-j, e, "train row %d too close to test start %d", j, start)
					}
					assert.Equal(t, len(f.Train), f.TrainSize)
				}
				assert.Equal(t, len(times), next, "last window absorbs the remainder")
			})
		}
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	times := hourly(90)
	a, err := Split(times, nil, Config{Folds: 4, Embargo: 3})
	require.NoError(t, err)
	b, err := Split(times, nil, Config{Folds: 4, Embargo: 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPurgeDropsRowsWhoseLabelReachesTest(t *testing.T) {
	times := hourly(40)
	horizons := make([]time.Time, len(times))
	for i := range horizons {
		if i+3 < len(times) {
			horizons[i] = times[i+3]
		}
	}
	folds, err := Split(times, horizons, Config{Folds: 3, Purge: true})
	require.NoError(t, err)

	f := folds[0] // test 10..19
	assert.Equal(t, 3, f.Purged)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, f.Train)
	for _, j := range f.Train {
		assert.True(t, horizons[j].Before(f.TestStart))
	}

	// without horizons the label reach in rows is used
	folds, err = Split(times, nil, Config{Folds: 3, Purge: true, LabelRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, folds[0].Purged)
	assert.Equal(t, 8, folds[0].TrainSize)
}

func TestEmbargoFollowsEarlierTestWindows(t *testing.T) {
	folds, err := Split(hourly(50), nil, Config{Folds: 4, Embargo: 2})
	require.NoError(t, err)

	f := folds[2] // test 30..39
	var want []int
	for j := 0; j < 20; j++ {
		want = append(want, j)
	}
	for j := 22; j < 28; j++ {
		want = append(want, j)
	}
	assert.Equal(t, want, f.Train)
	assert.Equal(t, 4, f.Embargoed)
}

func TestDegenerateFoldsAreReportedNotFatal(t *testing.T) {
	folds, err := Split(hourly(10), nil, Config{Folds: 4, Embargo: 2, MinTrain: 3})
	require.NoError(t, err)
	require.Len(t, folds, 4)

	assert.True(t, folds[0].Degenerate)
	assert.Empty(t, folds[0].Train)
	assert.Contains(t, folds[0].Reason, "empty")

	assert.True(t, folds[1].Degenerate)
	assert.Equal(t, 2, folds[1].TrainSize)
	assert.Contains(t, folds[1].Reason, "below minimum")

	assert.False(t, folds[3].Degenerate)
}

func TestRollingTrainWindow(t *testing.T) {
	folds, err := Split(hourly(60), nil, Config{Folds: 5, TrainWindow: 10})
	require.NoError(t, err)
	last := folds[4]
	assert.Equal(t, 50, last.Test[0])
	assert.Equal(t, 40, last.Train[0])
	assert.Equal(t, 10, last.TrainSize)
}

func TestSplitRejectsBadConfig(t *testing.T) {
	times := hourly(10)
	cases := []Config{
		{Folds: 0},
		{Folds: 2, Embargo: -1},
		{Folds: 2, TrainWindow: -5},
		{Folds: 10},
	}
	for _, c := range cases {
		_, err := Split(times, nil, c)
		assert.ErrorIs(t, err, ErrConfig, "%+v", c)
	}

	_, err := Split(times, make([]time.Time, 3), Config{Folds: 2, Purge: true})
	assert.ErrorIs(t, err, ErrConfig)
}
