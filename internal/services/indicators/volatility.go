package indicators

import (
	"math"

	"FinLab/internal/domain/models"
)

// --- atr ---

type atrInd struct {
	base
	period int
}

func newATR(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	return &atrInd{base: base{[]string{colName("atr", n)}, hlc, n - 1}, period: n}, nil
}

// Calculate is Wilder-smoothed true range, seeded with the mean of the first period rows.
func (a *atrInd) Calculate(f *models.Frame) [][]float64 {
	tr := trueRange(col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose))
	return [][]float64{wilder(tr, a.period)}
}

// --- bollinger bands ---

type bbandsInd struct {
	base
	period int
	k      float64
}

func newBBands(p Params) (Indicator, error) {
	if err := positive(p, "period", "k"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	outs := []string{colName("bb_upper", n), colName("bb_lower", n), colName("bb_width", n)}
	return &bbandsInd{base: base{outs, []string{models.ColClose}, n - 1}, period: n, k: p.Float("k")}, nil
}

// Calculate uses the population deviation. Width is relative to the middle band.
func (b *bbandsInd) Calculate(f *models.Frame) [][]float64 {
	c := col(f, models.ColClose)
	mid, sd := rollingMean(c, b.period), rollingPopStd(c, b.period)
	upper, lower, width := nans(len(c)), nans(len(c)), nans(len(c))
	for i := range c {
		if !finite(mid[i]) {
			continue
		}
		upper[i] = mid[i] + b.k*sd[i]
		lower[i] = mid[i] - b.k*sd[i]
		width[i] = (upper[i] - lower[i]) / (math.Abs(mid[i]) + tinyEps)
	}
	return [][]float64{upper, lower, width}
}

// --- realized volatility ---

type realizedVolInd struct {
	base
	window      int
	barsPerYear float64
}

func newRealizedVol(p Params) (Indicator, error) {
	if err := positive(p, "window", "bars_per_year"); err != nil {
		return nil, err
	}
	w := p.Int("window")
	if w < 2 {
		return nil, errWindowTooSmall("window", w)
	}
	return &realizedVolInd{base: base{[]string{colName("rv", w)}, []string{models.ColClose}, w}, window: w, barsPerYear: p.Float("bars_per_year")}, nil
}

// Calculate annualizes the sample deviation of log returns over the window.
func (r *realizedVolInd) Calculate(f *models.Frame) [][]float64 {
	sd := rollingStd(logReturns(col(f, models.ColClose)), r.window)
	out := nans(len(sd))
	for i, v := range sd {
		if finite(v) {
			out[i] = v * math.Sqrt(r.barsPerYear)
		}
	}
	return [][]float64{out}
}
