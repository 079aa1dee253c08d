package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(ts time.Time, close float64) Bar {
	return Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestFrameFromBarsIntegrity(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	t1, t2 := t0.Add(time.Hour), t0.Add(2*time.Hour)

	cases := []struct {
		name       string
		bars       []Bar
		wantIndex  []time.Time
		wantClose  []float64
		resorted   bool
		duplicates []time.Time
	}{
		{
			name:      "clean",
			bars:      []Bar{bar(t0, 1), bar(t1, 2), bar(t2, 3)},
			wantIndex: []time.Time{t0, t1, t2},
			wantClose: []float64{1, 2, 3},
		},
		{
			name:      "unsorted",
			bars:      []Bar{bar(t2, 3), bar(t0, 1), bar(t1, 2)},
			wantIndex: []time.Time{t0, t1, t2},
			wantClose: []float64{1, 2, 3},
			resorted:  true,
		},
		{
			name:       "duplicates kept",
			bars:       []Bar{bar(t0, 1), bar(t1, 2), bar(t1, 5)},
			wantIndex:  []time.Time{t0, t1, t1},
			wantClose:  []float64{1, 2, 5},
			duplicates: []time.Time{t1},
		},
		{
			name:       "unsorted duplicates keep input order",
			bars:       []Bar{bar(t1, 2), bar(t0, 1), bar(t1, 5)},
			wantIndex:  []time.Time{t0, t1, t1},
			wantClose:  []float64{1, 2, 5},
			resorted:   true,
			duplicates: []time.Time{t1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, rep, err := FrameFromBars("SPY", tc.bars)
			require.NoError(t, err)
			assert.Equal(t, len(tc.bars), rep.Rows)
			assert.Equal(t, tc.resorted, rep.Resorted)
			assert.Equal(t, tc.duplicates, rep.Duplicates)
			assert.Equal(t, !tc.resorted && len(tc.duplicates) == 0, rep.Clean())
			assert.Equal(t, tc.wantIndex, f.Index())
			closes, ok := f.Col(ColClose)
			require.True(t, ok)
			assert.Equal(t, tc.wantClose, closes)
		})
	}
}

func TestFrameFromBarsRejectsZeroTimestamp(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	_, _, err := FrameFromBars("SPY", []Bar{bar(t0, 1), {Close: 2}})
	assert.ErrorIs(t, err, ErrUnparseableTimestamp)
}

func TestFrameFromBarsFillsMissingExtrasWithNaN(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	a, b := bar(t0, 1), bar(t0.Add(time.Hour), 2)
	a.Extra = map[string]float64{"score": 0.7}

	f, _, err := FrameFromBars("SPY", []Bar{a, b})
	require.NoError(t, err)
	score, ok := f.Col("score")
	require.True(t, ok)
	assert.Equal(t, 0.7, score[0])
	assert.True(t, math.IsNaN(score[1]))
}
