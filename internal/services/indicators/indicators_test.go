package indicators

import (
	"math"
	"testing"
	"time"

	"FinLab/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closesFrame(t *testing.T, closes []float64, spread float64) *models.Frame {
	t.Helper()
	start := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + spread/2, Low: c - spread/2, Close: c, Volume: 100,
		}
	}
	f, _, err := models.FrameFromBars("T", bars)
	require.NoError(t, err)
	return f
}

func calc(t *testing.T, name string, overrides map[string]any, f *models.Frame) [][]float64 {
	t.Helper()
	b, err := Default().New(name, overrides)
	require.NoError(t, err)
	return b.Calculate(f)
}

func TestSMAAndEMAHandValues(t *testing.T) {
	f := closesFrame(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0)

	sma := calc(t, "sma", map[string]any{"period": 3}, f)[0]
	assert.True(t, math.IsNaN(sma[1]))
	assert.InDelta(t, 2.0, sma[2], 1e-12)
	assert.InDelta(t, 9.0, sma[9], 1e-12)

	// period 3 => alpha 0.5, seeded by mean(1,2,3)
	ema := calc(t, "ema", map[string]any{"period": 3}, f)[0]
	assert.True(t, math.IsNaN(ema[1]))
	assert.InDelta(t, 2.0, ema[2], 1e-12)
	assert.InDelta(t, 3.0, ema[3], 1e-12)
	assert.InDelta(t, 4.0, ema[4], 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	up := closesFrame(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, 0)
	rsi := calc(t, "rsi", map[string]any{"period": 3}, up)[0]
	assert.InDelta(t, 100.0, rsi[7], 1e-9)

	flat := closesFrame(t, []float64{5, 5, 5, 5, 5, 5}, 0)
	rsi = calc(t, "rsi", map[string]any{"period": 3}, flat)[0]
	assert.Equal(t, 50.0, rsi[5])
}

func TestATRConstantRange(t *testing.T) {
	f := closesFrame(t, []float64{10, 10, 10, 10, 10, 10, 10}, 2)
	atr := calc(t, "atr", map[string]any{"period": 3}, f)[0]
	for i := 2; i < len(atr); i++ {
		assert.InDelta(t, 2.0, atr[i], 1e-12)
	}
}

func TestBollingerUsesPopulationDeviation(t *testing.T) {
	f := closesFrame(t, []float64{2, 4, 4, 4, 5, 5, 7, 9}, 0)
	out := calc(t, "bbands", map[string]any{"period": 8, "k": 1.0}, f)
	// mean 5, population sd 2
	assert.InDelta(t, 7.0, out[0][7], 1e-12)
	assert.InDelta(t, 3.0, out[1][7], 1e-12)
	assert.InDelta(t, 0.8, out[2][7], 1e-12)
}

func TestOBVAccumulates(t *testing.T) {
	f := closesFrame(t, []float64{10, 11, 11, 9, 12}, 0)
	obv := calc(t, "obv", nil, f)[0]
	assert.Equal(t, []float64{0, 100, 100, 0, 100}, obv)
}

func TestFlowRatios(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		{Timestamp: start, Close: 1, Extra: map[string]float64{"calls_bought": 30, "calls_sold": 10, "puts_bought": 5, "puts_sold": 15}},
		{Timestamp: start.Add(time.Hour), Close: 1, Extra: map[string]float64{"calls_bought": 0, "calls_sold": 0, "puts_bought": 0, "puts_sold": 0}},
	}
	f, _, err := models.FrameFromBars("T", bars)
	require.NoError(t, err)

	pcr := calc(t, "put_call_ratio", nil, f)[0]
	assert.InDelta(t, 0.5, pcr[0], 1e-9)
	assert.Equal(t, 0.0, pcr[1])

	imb := calc(t, "flow_imbalance", nil, f)[0]
	// (30 - 10 - 5 + 15) / 60
	assert.InDelta(t, 0.5, imb[0], 1e-9)
	assert.Equal(t, 0.0, imb[1])
}

func TestSupertrendStepFlipsOnBreak(t *testing.T) {
	s, line := stStep(stState{}, stBar{hl2: 100, atr: 1, close: 101}, 3)
	require.Equal(t, 1.0, s.dir)
	assert.Equal(t, 97.0, line)

	// close holds above the lower band: stays up, lower band only ratchets up
	s, line = stStep(s, stBar{hl2: 99, atr: 1, close: 99}, 3)
	assert.Equal(t, 1.0, s.dir)
	assert.Equal(t, 97.0, line)

	// close breaks below the lower band
	s, line = stStep(s, stBar{hl2: 95, atr: 1, close: 94}, 3)
	assert.Equal(t, -1.0, s.dir)
	assert.Equal(t, s.upper, line)
}

func TestADXStrongTrend(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out := calc(t, "adx", map[string]any{"period": 5}, closesFrame(t, closes, 1))
	adx, plus, minus := out[0], out[1], out[2]
	last := len(closes) - 1
	assert.Greater(t, adx[last], 90.0)
	assert.Greater(t, plus[last], minus[last])
	assert.True(t, math.IsNaN(adx[8]))
	assert.False(t, math.IsNaN(adx[9]))
}
