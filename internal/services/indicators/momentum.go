package indicators

import (
	"math"

	"FinLab/internal/domain/models"
)

var hlc = []string{models.ColHigh, models.ColLow, models.ColClose}

// --- rsi ---

// rsiInd uses Wilder smoothing of gains and losses. A window with neither
// gains nor losses reads 50.
type rsiInd struct {
	base
	period int
}

func newRSI(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	return &rsiInd{base: base{[]string{colName("rsi", n)}, []string{models.ColClose}, n}, period: n}, nil
}

func (r *rsiInd) Calculate(f *models.Frame) [][]float64 {
	d := shiftDiff(col(f, models.ColClose), 1)
	gain, loss := nans(len(d)), nans(len(d))
	for i, v := range d {
		if !finite(v) {
			continue
		}
		gain[i], loss[i] = math.Max(v, 0), math.Max(-v, 0)
	}
	ag, al := wilder(gain, r.period), wilder(loss, r.period)
	out := nans(len(d))
	for i := range d {
		if !finite(ag[i]) || !finite(al[i]) {
			continue
		}
		if ag[i]+al[i] < tinyEps {
			out[i] = 50
			continue
		}
		out[i] = 100 * ag[i] / (ag[i] + al[i])
	}
	return [][]float64{out}
}

// --- roc ---

type rocInd struct {
	base
	period int
}

func newROC(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	return &rocInd{base: base{[]string{colName("roc", n)}, []string{models.ColClose}, n}, period: n}, nil
}

// Calculate returns percent change over period bars, 1e-12 guarded.
func (r *rocInd) Calculate(f *models.Frame) [][]float64 {
	c := col(f, models.ColClose)
	out := nans(len(c))
	for i := r.period; i < len(c); i++ {
		out[i] = 100 * (c[i] - c[i-r.period]) / (math.Abs(c[i-r.period]) + tinyEps)
	}
	return [][]float64{out}
}

// --- stochastic ---

type stochInd struct {
	base
	k, d int
}

func newStoch(p Params) (Indicator, error) {
	if err := positive(p, "k", "d"); err != nil {
		return nil, err
	}
	k, d := p.Int("k"), p.Int("d")
	outs := []string{colName("stoch_k", k), colName("stoch_d", k, d)}
	return &stochInd{base: base{outs, hlc, k + d - 2}, k: k, d: d}, nil
}

func (s *stochInd) Calculate(f *models.Frame) [][]float64 {
	h, l, c := col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose)
	hh, ll := rollingMax(h, s.k), rollingMin(l, s.k)
	pk := nans(len(c))
	for i := range c {
		if finite(hh[i]) && finite(ll[i]) {
			pk[i] = 100 * (c[i] - ll[i]) / (hh[i] - ll[i] + tinyEps)
		}
	}
	return [][]float64{pk, rollingMean(pk, s.d)}
}

// --- williams %R ---

type willrInd struct {
	base
	period int
}

func newWilliamsR(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	return &willrInd{base: base{[]string{colName("willr", n)}, hlc, n - 1}, period: n}, nil
}

func (w *willrInd) Calculate(f *models.Frame) [][]float64 {
	h, l, c := col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose)
	hh, ll := rollingMax(h, w.period), rollingMin(l, w.period)
	out := nans(len(c))
	for i := range c {
		if finite(hh[i]) && finite(ll[i]) {
			out[i] = -100 * (hh[i] - c[i]) / (hh[i] - ll[i] + tinyEps)
		}
	}
	return [][]float64{out}
}

// --- cci ---

type cciInd struct {
	base
	period int
}

func newCCI(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	return &cciInd{base: base{[]string{colName("cci", n)}, hlc, n - 1}, period: n}, nil
}

// Calculate uses the Lambert constant 0.015 and the mean absolute deviation.
func (c *cciInd) Calculate(f *models.Frame) [][]float64 {
	tp := typicalPrice(col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose))
	mean := rollingMean(tp, c.period)
	out := nans(len(tp))
	for i := c.period - 1; i < len(tp); i++ {
		if !finite(mean[i]) {
			continue
		}
		dev := 0.0
		for _, v := range tp[i-c.period+1 : i+1] {
			dev += math.Abs(v - mean[i])
		}
		dev /= float64(c.period)
		out[i] = (tp[i] - mean[i]) / (0.015*dev + tinyEps)
	}
	return [][]float64{out}
}
