package indicators

import (
	"fmt"

	"FinLab/internal/domain/models"
)

func errWindowTooSmall(key string, v int) error {
	return fmt.Errorf("%w: %s must be >= 2, got %d", ErrConfig, key, v)
}

// --- obv ---

type obvInd struct{ base }

func newOBV(Params) (Indicator, error) {
	return &obvInd{base{[]string{"obv"}, []string{models.ColClose, models.ColVolume}, 0}}, nil
}

// Calculate starts at 0 and adds or subtracts volume on up or down closes.
func (o *obvInd) Calculate(f *models.Frame) [][]float64 {
	c, v := col(f, models.ColClose), col(f, models.ColVolume)
	out := make([]float64, len(c))
	acc := 0.0
	for i := 1; i < len(c); i++ {
		switch {
		case !finite(c[i]) || !finite(c[i-1]) || !finite(v[i]):
		case c[i] > c[i-1]:
			acc += v[i]
		case c[i] < c[i-1]:
			acc -= v[i]
		}
		out[i] = acc
	}
	return [][]float64{out}
}

// --- rolling vwap ---

type vwapInd struct {
	base
	period int
}

func newVWAP(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	ins := []string{models.ColHigh, models.ColLow, models.ColClose, models.ColVolume}
	return &vwapInd{base: base{[]string{colName("vwap", n)}, ins, n - 1}, period: n}, nil
}

// Calculate falls back to the typical price mean when the window has no volume.
func (w *vwapInd) Calculate(f *models.Frame) [][]float64 {
	tp := typicalPrice(col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose))
	v := col(f, models.ColVolume)
	pv := make([]float64, len(tp))
	for i := range tp {
		pv[i] = tp[i] * v[i]
	}
	spv, sv, mtp := rollingSum(pv, w.period), rollingSum(v, w.period), rollingMean(tp, w.period)
	out := nans(len(tp))
	for i := range tp {
		if !finite(spv[i]) || !finite(sv[i]) {
			continue
		}
		if sv[i] < tinyEps {
			out[i] = mtp[i]
			continue
		}
		out[i] = spv[i] / sv[i]
	}
	return [][]float64{out}
}

// --- volume z-score ---

type volumeZInd struct {
	base
	period int
}

func newVolumeZ(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	if n < 2 {
		return nil, errWindowTooSmall("period", n)
	}
	return &volumeZInd{base: base{[]string{colName("volume_z", n)}, []string{models.ColVolume}, n - 1}, period: n}, nil
}

func (z *volumeZInd) Calculate(f *models.Frame) [][]float64 {
	v := col(f, models.ColVolume)
	mean, sd := rollingMean(v, z.period), rollingStd(v, z.period)
	out := nans(len(v))
	for i := range v {
		if finite(mean[i]) {
			out[i] = (v[i] - mean[i]) / (sd[i] + tinyEps)
		}
	}
	return [][]float64{out}
}

// --- option flow ---

var flowCols = []string{models.ColCallsBought, models.ColCallsSold, models.ColPutsBought, models.ColPutsSold}

type pcrInd struct {
	base
	window int
}

func newPutCallRatio(p Params) (Indicator, error) {
	if err := positive(p, "window"); err != nil {
		return nil, err
	}
	w := p.Int("window")
	return &pcrInd{base: base{[]string{colName("pcr", w)}, flowCols, w - 1}, window: w}, nil
}

// Calculate is total put volume over total call volume in the window, 1e-9 guarded.
func (r *pcrInd) Calculate(f *models.Frame) [][]float64 {
	calls, puts := flowTotals(f)
	sc, sp := rollingSum(calls, r.window), rollingSum(puts, r.window)
	out := nans(len(calls))
	for i := range calls {
		if finite(sc[i]) && finite(sp[i]) {
			out[i] = sp[i] / (sc[i] + flowEps)
		}
	}
	return [][]float64{out}
}

type flowImbInd struct {
	base
	window int
}

func newFlowImbalance(p Params) (Indicator, error) {
	if err := positive(p, "window"); err != nil {
		return nil, err
	}
	w := p.Int("window")
	return &flowImbInd{base: base{[]string{colName("flow_imb", w)}, flowCols, w - 1}, window: w}, nil
}

// Calculate is customer net bullish flow over total flow in the window:
// (calls bought - calls sold - puts bought + puts sold) / total, 1e-9 guarded.
func (m *flowImbInd) Calculate(f *models.Frame) [][]float64 {
	cb, cs := col(f, models.ColCallsBought), col(f, models.ColCallsSold)
	pb, ps := col(f, models.ColPutsBought), col(f, models.ColPutsSold)
	net, total := make([]float64, len(cb)), make([]float64, len(cb))
	for i := range cb {
		net[i] = cb[i] - cs[i] - pb[i] + ps[i]
		total[i] = cb[i] + cs[i] + pb[i] + ps[i]
	}
	sn, st := rollingSum(net, m.window), rollingSum(total, m.window)
	out := nans(len(cb))
	for i := range cb {
		if finite(sn[i]) && finite(st[i]) {
			out[i] = sn[i] / (st[i] + flowEps)
		}
	}
	return [][]float64{out}
}

func flowTotals(f *models.Frame) (calls, puts []float64) {
	cb, cs := col(f, models.ColCallsBought), col(f, models.ColCallsSold)
	pb, ps := col(f, models.ColPutsBought), col(f, models.ColPutsSold)
	calls, puts = make([]float64, len(cb)), make([]float64, len(cb))
	for i := range cb {
		calls[i] = cb[i] + cs[i]
		puts[i] = pb[i] + ps[i]
	}
	return calls, puts
}
