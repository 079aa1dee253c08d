package indicators

import (
	"fmt"
	"math"
	"strings"

	"FinLab/internal/domain/models"
)

type base struct {
	outputs  []string
	inputs   []string
	lookback int
}

func (b base) Outputs() []string { return append([]string(nil), b.outputs...) }
func (b base) Inputs() []string  { return append([]string(nil), b.inputs...) }
func (b base) Lookback() int     { return b.lookback }

func colName(prefix string, parts ...any) string {
	s := make([]string, 0, len(parts)+1)
	s = append(s, prefix)
	for _, p := range parts {
		s = append(s, formatValue(p))
	}
	return strings.Join(s, "_")
}

// sourceName keeps names short for the common close-price source.
func sourceName(prefix, column string, period int) string {
	if column == models.ColClose {
		return colName(prefix, period)
	}
	return colName(prefix, column, period)
}

func col(f *models.Frame, name string) []float64 {
	v, _ := f.Col(name)
	return v
}

// --- sma ---

type smaInd struct {
	base
	column string
	period int
}

func newSMA(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n, c := p.Int("period"), p.String("column")
	if c == "" {
		return nil, fmt.Errorf("%w: column is empty", ErrConfig)
	}
	return &smaInd{base: base{[]string{sourceName("sma", c, n)}, []string{c}, n - 1}, column: c, period: n}, nil
}

func (s *smaInd) Calculate(f *models.Frame) [][]float64 {
	return [][]float64{rollingMean(col(f, s.column), s.period)}
}

// --- ema ---

// emaInd uses the span convention alpha = 2/(period+1), seeded with the SMA of
// the first period values.
type emaInd struct {
	base
	column string
	period int
}

func newEMA(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n, c := p.Int("period"), p.String("column")
	if c == "" {
		return nil, fmt.Errorf("%w: column is empty", ErrConfig)
	}
	return &emaInd{base: base{[]string{sourceName("ema", c, n)}, []string{c}, n - 1}, column: c, period: n}, nil
}

func (e *emaInd) Calculate(f *models.Frame) [][]float64 {
	return [][]float64{spanEMA(col(f, e.column), e.period)}
}

// --- macd ---

// macdInd: line = ema(fast) - ema(slow), signal = ema(line, signal), hist = line - signal.
// All three use the span convention.
type macdInd struct {
	base
	fast, slow, signal int
}

func newMACD(p Params) (Indicator, error) {
	if err := positive(p, "fast", "slow", "signal"); err != nil {
		return nil, err
	}
	fast, slow, sig := p.Int("fast"), p.Int("slow"), p.Int("signal")
	if fast >= slow {
		return nil, fmt.Errorf("%w: fast (%d) must be < slow (%d)", ErrConfig, fast, slow)
	}
	outs := []string{
		colName("macd", fast, slow, sig),
		colName("macd_signal", fast, slow, sig),
		colName("macd_hist", fast, slow, sig),
	}
	return &macdInd{base: base{outs, []string{models.ColClose}, slow + sig - 2}, fast: fast, slow: slow, signal: sig}, nil
}

func (m *macdInd) Calculate(f *models.Frame) [][]float64 {
	c := col(f, models.ColClose)
	fast, slow := spanEMA(c, m.fast), spanEMA(c, m.slow)
	line := make([]float64, len(c))
	for i := range c {
		line[i] = fast[i] - slow[i]
	}
	signal := spanEMA(line, m.signal)
	hist := make([]float64, len(c))
	for i := range c {
		hist[i] = line[i] - signal[i]
	}
	return [][]float64{line, signal, hist}
}

// --- adx ---

// adxInd is Wilder's directional movement system. DM and TR start at row 1, the
// DIs at row period and ADX at row 2*period-1.
type adxInd struct {
	base
	period int
}

func newADX(p Params) (Indicator, error) {
	if err := positive(p, "period"); err != nil {
		return nil, err
	}
	n := p.Int("period")
	outs := []string{colName("adx", n), colName("plus_di", n), colName("minus_di", n)}
	return &adxInd{base: base{outs, []string{models.ColHigh, models.ColLow, models.ColClose}, 2*n - 1}, period: n}, nil
}

func (a *adxInd) Calculate(f *models.Frame) [][]float64 {
	h, l, c := col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose)
	n := len(c)
	plusDM, minusDM, tr := nans(n), nans(n), nans(n)
	full := trueRange(h, l, c)
	for i := 1; i < n; i++ {
		up, down := h[i]-h[i-1], l[i-1]-l[i]
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = full[i]
	}
	sTR, sPlus, sMinus := wilder(tr, a.period), wilder(plusDM, a.period), wilder(minusDM, a.period)
	plusDI, minusDI, dx := nans(n), nans(n), nans(n)
	for i := range c {
		if math.IsNaN(sTR[i]) {
			continue
		}
		plusDI[i] = 100 * sPlus[i] / (sTR[i] + tinyEps)
		minusDI[i] = 100 * sMinus[i] / (sTR[i] + tinyEps)
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / (plusDI[i] + minusDI[i] + tinyEps)
	}
	return [][]float64{wilder(dx, a.period), plusDI, minusDI}
}

// --- supertrend ---

type supertrendInd struct {
	base
	period int
	mult   float64
}

func newSupertrend(p Params) (Indicator, error) {
	if err := positive(p, "period", "multiplier"); err != nil {
		return nil, err
	}
	n, m := p.Int("period"), p.Float("multiplier")
	outs := []string{colName("supertrend", n, m), colName("supertrend_dir", n, m)}
	return &supertrendInd{base: base{outs, []string{models.ColHigh, models.ColLow, models.ColClose}, n - 1}, period: n, mult: m}, nil
}

// stState is carried from one bar to the next.
type stState struct {
	ready bool
	upper float64
	lower float64
	close float64
	dir   float64 // +1 up, -1 down
}

type stBar struct {
	hl2, atr, close float64
}

// stStep folds one bar into the band state and returns the line value.
func stStep(s stState, b stBar, mult float64) (stState, float64) {
	basicUpper := b.hl2 + mult*b.atr
	basicLower := b.hl2 - mult*b.atr
	if !s.ready {
		next := stState{ready: true, upper: basicUpper, lower: basicLower, close: b.close, dir: 1}
		if b.close < b.hl2 {
			next.dir = -1
		}
		if next.dir > 0 {
			return next, basicLower
		}
		return next, basicUpper
	}

	upper := s.upper
	if basicUpper < s.upper || s.close > s.upper {
		upper = basicUpper
	}
	lower := s.lower
	if basicLower > s.lower || s.close < s.lower {
		lower = basicLower
	}
	dir := s.dir
	switch {
	case s.dir > 0 && b.close < lower:
		dir = -1
	case s.dir < 0 && b.close > upper:
		dir = 1
	}
	next := stState{ready: true, upper: upper, lower: lower, close: b.close, dir: dir}
	if dir > 0 {
		return next, lower
	}
	return next, upper
}

func (s *supertrendInd) Calculate(f *models.Frame) [][]float64 {
	h, l, c := col(f, models.ColHigh), col(f, models.ColLow), col(f, models.ColClose)
	atr := wilder(trueRange(h, l, c), s.period)
	line, dir := nans(len(c)), nans(len(c))
	var st stState
	for i := range c {
		if !finite(atr[i]) || !finite(c[i]) {
			continue
		}
		var v float64
		st, v = stStep(st, stBar{hl2: (h[i] + l[i]) / 2, atr: atr[i], close: c[i]}, s.mult)
		line[i], dir[i] = v, st.dir
	}
	return [][]float64{line, dir}
}
