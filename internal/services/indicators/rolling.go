package indicators

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Denominator guards. Ratios of prices use tinyEps; ratios of flow counts use flowEps.
const (
	tinyEps = 1e-12
	flowEps = 1e-9
)

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func nans(n int) []float64 { return filled(n, math.NaN()) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(x []float64) bool {
	for _, v := range x {
		if !finite(v) {
			return false
		}
	}
	return true
}

// rollingApply calls fn on every full window ending at i; windows holding a
// non-finite value yield NaN.
func rollingApply(x []float64, n int, fn func(w []float64) float64) []float64 {
	out := nans(len(x))
	for i := n - 1; i < len(x); i++ {
		w := x[i-n+1 : i+1]
		if !allFinite(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func rollingMean(x []float64, n int) []float64 {
	return rollingApply(x, n, func(w []float64) float64 { return stat.Mean(w, nil) })
}

func rollingSum(x []float64, n int) []float64 {
	return rollingApply(x, n, floats.Sum)
}

// rollingStd is the sample standard deviation (n-1).
func rollingStd(x []float64, n int) []float64 {
	return rollingApply(x, n, func(w []float64) float64 {
		if len(w) < 2 {
			return 0
		}
		return stat.StdDev(w, nil)
	})
}

// rollingPopStd is the population standard deviation (n).
func rollingPopStd(x []float64, n int) []float64 {
	return rollingApply(x, n, func(w []float64) float64 {
		_, std := stat.PopMeanStdDev(w, nil)
		return std
	})
}

func rollingMax(x []float64, n int) []float64 { return rollingApply(x, n, floats.Max) }

func rollingMin(x []float64, n int) []float64 { return rollingApply(x, n, floats.Min) }

// ewm is an exponentially weighted mean seeded with the simple mean of the first
// n finite values: out[s+n-1] = mean(x[s:s+n]), then out[i] = a*x[i] + (1-a)*out[i-1].
// A non-finite input yields NaN at that row and leaves the state untouched.
func ewm(x []float64, n int, alpha float64) []float64 {
	out := nans(len(x))
	start := -1
	for i := 0; i+n <= len(x); i++ {
		if allFinite(x[i : i+n]) {
			start = i
			break
		}
	}
	if start < 0 {
		return out
	}
	prev := stat.Mean(x[start:start+n], nil)
	out[start+n-1] = prev
	for i := start + n; i < len(x); i++ {
		if !finite(x[i]) {
			continue
		}
		prev = alpha*x[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// wilder smooths with alpha = 1/n.
func wilder(x []float64, n int) []float64 { return ewm(x, n, 1/float64(n)) }

// spanEMA smooths with the span convention alpha = 2/(n+1).
func spanEMA(x []float64, n int) []float64 { return ewm(x, n, 2/float64(n+1)) }

// trueRange uses high-low on the first row, where no previous close exists.
func trueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		out[i] = math.Max(hl, math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}
	return out
}

func typicalPrice(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		out[i] = (high[i] + low[i] + close[i]) / 3
	}
	return out
}

// shiftDiff returns x[i] - x[i-lag], NaN for the first lag rows.
func shiftDiff(x []float64, lag int) []float64 {
	out := nans(len(x))
	for i := lag; i < len(x); i++ {
		out[i] = x[i] - x[i-lag]
	}
	return out
}

// logReturns returns ln(x[i]/x[i-1]); NaN on row 0 and on non-positive prices.
func logReturns(x []float64) []float64 {
	out := nans(len(x))
	for i := 1; i < len(x); i++ {
		if x[i-1] > 0 && x[i] > 0 {
			out[i] = math.Log(x[i] / x[i-1])
		}
	}
	return out
}

// LogReturns is the one-bar log return used by the feature builder.
func LogReturns(close []float64) []float64 { return logReturns(close) }
