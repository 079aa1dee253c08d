// Package features turns a bar frame into a feature matrix: indicator outputs
// from the registry plus engineered flow, return and session-time columns.
package features

import (
	"fmt"
	"math"
	"strconv"

	"FinLab/internal/domain/models"
	"FinLab/internal/services/indicators"
	"FinLab/internal/services/session"
	applogger "FinLab/pkg/logger"
)

// Engineered column names.
const (
	ColReturn1         = "ret_1"
	ColPutCallRatio    = "put_call_ratio"
	ColFlowImbalance   = "flow_imbalance"
	ColGammaTilt       = "customer_gamma_tilt"
	ColDealerLongGamma = "dealer_long_gamma"
	ColDealerShortGam  = "dealer_short_gamma"
	ColHourOfDay       = "hour_of_day"
	ColDayOfWeek       = "day_of_week"
)

const flowEps = 1e-9

type Config struct {
	// DistanceMax clips strike-distance buckets into [-DistanceMax, DistanceMax].
	DistanceMax int
	// DealerThreshold is the deadband on the customer gamma tilt inside which
	// neither dealer flag is set.
	DealerThreshold float64
}

type Builder struct {
	reg *indicators.Registry
	cal *session.Calendar
	cfg Config
	l   *applogger.Logger
}

func NewBuilder(reg *indicators.Registry, cal *session.Calendar, cfg Config, l *applogger.Logger) *Builder {
	if l == nil {
		l = applogger.Nop()
	}
	if cal == nil {
		cal = session.UTC()
	}
	return &Builder{reg: reg, cal: cal, cfg: cfg, l: l}
}

// Resolve turns descriptors into configured indicators. It fails on the first
// unknown name, bad parameter, or output column produced twice.
func (b *Builder) Resolve(descs []models.IndicatorDescriptor) ([]*indicators.Bound, error) {
	out := make([]*indicators.Bound, 0, len(descs))
	seen := map[string]string{}
	for i, d := range descs {
		bound, err := b.reg.New(d.Name, d.Params)
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}
		for _, c := range bound.Outputs() {
			if prev, dup := seen[c]; dup {
				return nil, fmt.Errorf("descriptor %d: %w: column %q already produced by %s", i, indicators.ErrConfig, c, prev)
			}
			seen[c] = d.Name
		}
		out = append(out, bound)
	}
	return out, nil
}

// Canonicalize returns descriptors with every default parameter filled in, so
// equivalent sets hash identically.
func (b *Builder) Canonicalize(descs []models.IndicatorDescriptor) ([]models.IndicatorDescriptor, error) {
	bounds, err := b.Resolve(descs)
	if err != nil {
		return nil, err
	}
	out := make([]models.IndicatorDescriptor, len(bounds))
	for i, bd := range bounds {
		out[i] = models.IndicatorDescriptor{Name: bd.Name(), Params: bd.Params()}
	}
	return out, nil
}

// Build returns a new frame holding f's columns, the indicator outputs in
// descriptor order, then the engineered columns. All descriptors are resolved
// before anything is computed.
func (b *Builder) Build(f *models.Frame, descs []models.IndicatorDescriptor, flow []models.FlowRecord) (*models.Frame, error) {
	bounds, err := b.Resolve(descs)
	if err != nil {
		return nil, err
	}
	for _, bd := range bounds {
		for _, c := range bd.Outputs() {
			if f.Has(c) {
				return nil, fmt.Errorf("%w: indicator %s output %q collides with an input column", indicators.ErrConfig, bd.Name(), c)
			}
		}
	}

	var names []string
	var cols [][]float64
	for _, bd := range bounds {
		if missing := bd.Missing(f); len(missing) > 0 {
			b.l.Warn("indicator inputs missing, using fallback",
				applogger.String("ticker", f.Ticker()),
				applogger.String("indicator", bd.Name()),
				applogger.Strings("missing", missing),
			)
		}
		names = append(names, bd.Outputs()...)
		cols = append(cols, bd.Calculate(f)...)
	}

	if c, ok := f.Col(models.ColClose); ok {
		names = append(names, ColReturn1)
		cols = append(cols, indicators.LogReturns(c))
	}

	fn, fc := b.flowFeatures(f, flow)
	names = append(names, fn...)
	cols = append(cols, fc...)

	tn, tc := b.timeFeatures(f)
	names = append(names, tn...)
	cols = append(cols, tc...)

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if f.Has(n) {
			return nil, fmt.Errorf("%w: feature %q collides with an input column", indicators.ErrConfig, n)
		}
		if seen[n] {
			return nil, fmt.Errorf("%w: feature %q produced twice", indicators.ErrConfig, n)
		}
		seen[n] = true
	}

	out, err := f.WithColumns(names, cols)
	if err != nil {
		return nil, fmt.Errorf("assemble matrix: %w", err)
	}
	return out, nil
}

type flowTotals struct {
	cb, cs, pb, ps []float64
}

// flowFeatures buckets per-distance records onto bar rows and derives the flow
// summaries. Without records it summarizes bar-level flow columns if present.
func (b *Builder) flowFeatures(f *models.Frame, flow []models.FlowRecord) ([]string, [][]float64) {
	n := f.Len()
	var names []string
	var cols [][]float64
	var tot *flowTotals

	if len(flow) > 0 {
		rowOf := make(map[int64]int, n)
		for i := n - 1; i >= 0; i-- {
			rowOf[f.Time(i).UnixNano()] = i
		}
		dm := b.cfg.DistanceMax
		width := 2*dm + 1
		buckets := make([][4][]float64, width)
		for k := range buckets {
			for j := range buckets[k] {
				buckets[k][j] = make([]float64, n)
			}
		}
		tot = &flowTotals{cb: make([]float64, n), cs: make([]float64, n), pb: make([]float64, n), ps: make([]float64, n)}
		unmatched := 0
		for _, r := range flow {
			row, ok := rowOf[r.Timestamp.UnixNano()]
			if !ok {
				unmatched++
				continue
			}
			k := clamp(r.Distance, -dm, dm) + dm
			buckets[k][0][row] += r.CallsBought
			buckets[k][1][row] += r.CallsSold
			buckets[k][2][row] += r.PutsBought
			buckets[k][3][row] += r.PutsSold
			tot.cb[row] += r.CallsBought
			tot.cs[row] += r.CallsSold
			tot.pb[row] += r.PutsBought
			tot.ps[row] += r.PutsSold
		}
		if unmatched > 0 {
			b.l.Warn("flow records without matching bar",
				applogger.String("ticker", f.Ticker()),
				applogger.Int("unmatched", unmatched),
				applogger.Int("records", len(flow)),
			)
		}
		prefixes := [4]string{models.ColCallsBought, models.ColCallsSold, models.ColPutsBought, models.ColPutsSold}
		for k := 0; k < width; k++ {
			for j, p := range prefixes {
				names = append(names, BucketColumn(p, k-dm))
				cols = append(cols, buckets[k][j])
			}
		}
	} else if hasAll(f, models.ColCallsBought, models.ColCallsSold, models.ColPutsBought, models.ColPutsSold) {
		cb, _ := f.Col(models.ColCallsBought)
		cs, _ := f.Col(models.ColCallsSold)
		pb, _ := f.Col(models.ColPutsBought)
		ps, _ := f.Col(models.ColPutsSold)
		tot = &flowTotals{cb: cb, cs: cs, pb: pb, ps: ps}
	}

	if tot == nil {
		return names, cols
	}
	pcr, imb, tilt := make([]float64, n), make([]float64, n), make([]float64, n)
	long, short := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		calls, puts := tot.cb[i]+tot.cs[i], tot.pb[i]+tot.ps[i]
		total := calls + puts
		pcr[i] = puts / (calls + flowEps)
		imb[i] = (tot.cb[i] - tot.cs[i] - tot.pb[i] + tot.ps[i]) / (total + flowEps)
		// customers net long options leave dealers short gamma
		tilt[i] = (tot.cb[i] - tot.cs[i] + tot.pb[i] - tot.ps[i]) / (total + flowEps)
		if math.IsNaN(tilt[i]) {
			pcr[i], imb[i], tilt[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		switch {
		case tilt[i] > b.cfg.DealerThreshold:
			short[i] = 1
		case tilt[i] < -b.cfg.DealerThreshold:
			long[i] = 1
		}
	}
	names = append(names, ColPutCallRatio, ColFlowImbalance, ColGammaTilt, ColDealerLongGamma, ColDealerShortGam)
	cols = append(cols, pcr, imb, tilt, long, short)
	return names, cols
}

func (b *Builder) timeFeatures(f *models.Frame) ([]string, [][]float64) {
	n := f.Len()
	hour, dow := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		l := b.cal.Local(f.Time(i))
		hour[i] = float64(l.Hour()) + float64(l.Minute())/60
		dow[i] = float64(l.Weekday())
	}
	return []string{ColHourOfDay, ColDayOfWeek}, [][]float64{hour, dow}
}

// BucketColumn names a per-distance flow column, e.g. calls_sold_d-2.
func BucketColumn(prefix string, distance int) string {
	return prefix + "_d" + strconv.Itoa(distance)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hasAll(f *models.Frame, cols ...string) bool {
	for _, c := range cols {
		if _, ok := f.Col(c); !ok {
			return false
		}
	}
	return true
}

// Warmup returns the largest lookback among descriptors, i.e. how many leading
// rows of the matrix carry warm-up NaNs.
func (b *Builder) Warmup(descs []models.IndicatorDescriptor) (int, error) {
	bounds, err := b.Resolve(descs)
	if err != nil {
		return 0, err
	}
	w := 0
	for _, bd := range bounds {
		if bd.Lookback() > w {
			w = bd.Lookback()
		}
	}
	return w, nil
}
