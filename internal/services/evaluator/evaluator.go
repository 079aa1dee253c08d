// Package evaluator backtests a grid of decision thresholds on every
// walk-forward fold.
package evaluator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"FinLab/internal/domain/models"
	"FinLab/internal/domain/repository"
)

var ErrConfig = errors.New("evaluator: invalid config")

type Direction string

const (
	AtOrAbove Direction = "at_or_above"
	AtOrBelow Direction = "at_or_below"
)

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

const DefaultEps = 1e-9

// minSharpeTrades is the fewest trades whose Sharpe is not flagged, whatever
// MinTrades says.
const minSharpeTrades = 2

type Config struct {
	Thresholds []float64
	Direction  Direction
	Side       Side
	Cadence    repository.Cadence
	Eps        float64
	// MinTrades below which a result is flagged few_trades. Values under 2
	// still flag single-trade results.
	MinTrades int
}

// PeriodsPerYear is the Sharpe annualization factor for a cadence: 252
// sessions of 7 hourly bars, 252 sessions, or 1 for unannualized.
func PeriodsPerYear(c repository.Cadence) float64 {
	switch c {
	case repository.CadenceHourly:
		return 252 * 7
	case repository.CadenceDaily:
		return 252
	default:
		return 1
	}
}

func (c *Config) normalize() error {
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("%w: no thresholds", ErrConfig)
	}
	for _, th := range c.Thresholds {
		if math.IsNaN(th) {
			return fmt.Errorf("%w: NaN threshold", ErrConfig)
		}
	}
	if c.Direction == "" {
		c.Direction = AtOrAbove
	}
	if c.Direction != AtOrAbove && c.Direction != AtOrBelow {
		return fmt.Errorf("%w: direction %q", ErrConfig, c.Direction)
	}
	if c.Side == "" {
		c.Side = Long
	}
	if c.Side != Long && c.Side != Short {
		return fmt.Errorf("%w: side %q", ErrConfig, c.Side)
	}
	if c.Cadence == "" {
		c.Cadence = repository.CadenceNone
	}
	if !repository.IsValidCadence(c.Cadence) {
		return fmt.Errorf("%w: cadence %q", ErrConfig, c.Cadence)
	}
	if c.Eps <= 0 {
		c.Eps = DefaultEps
	}
	return nil
}

// FoldInput pairs a fold with model scores aligned to the frame's rows. Scores
// may be nil for a fold that could not be scored; its results then carry no
// trades.
type FoldInput struct {
	Fold   models.Fold
	Scores []float64
}

// Sweep evaluates every threshold on every fold. returns holds the realized
// per-row return a trade on that row would earn going long; rows with a
// non-finite score or return are never selected.
func Sweep(inputs []FoldInput, returns []float64, cfg Config) (*models.Evaluation, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if in.Scores != nil && len(in.Scores) != len(returns) {
			return nil, fmt.Errorf("%w: fold %d has %d scores for %d rows", ErrConfig, in.Fold.Index, len(in.Scores), len(returns))
		}
		for _, row := range in.Fold.Test {
			if row < 0 || row >= len(returns) {
				return nil, fmt.Errorf("%w: fold %d test row %d out of range", ErrConfig, in.Fold.Index, row)
			}
		}
	}

	ev := &models.Evaluation{Folds: make([]models.FoldEvaluation, 0, len(inputs))}
	for _, in := range inputs {
		fe := models.FoldEvaluation{Fold: in.Fold.Index, Degenerate: in.Fold.Degenerate, Reason: in.Fold.Reason}
		for _, th := range cfg.Thresholds {
			r := evaluate(in, returns, th, cfg)
			fe.Results = append(fe.Results, r)
		}
		fe.Best = best(fe.Results, func(models.ThresholdResult) bool { return true })
		ev.Folds = append(ev.Folds, fe)
	}

	var all []models.ThresholdResult
	for _, fe := range ev.Folds {
		all = append(all, fe.Results...)
	}
	if b := best(all, func(models.ThresholdResult) bool { return true }); b != nil {
		b.Flags = append(append([]string(nil), b.Flags...), models.FlagSingleFoldMax)
		ev.Best = b
	}
	ev.BestRobust = best(all, func(r models.ThresholdResult) bool { return len(r.Flags) == 0 })
	ev.Summary = summarize(ev.Folds, cfg.Thresholds)
	return ev, nil
}

// Trades returns the returns selected at threshold th on one fold, in
// chronological order, already signed for the configured side.
func Trades(in FoldInput, returns []float64, th float64, cfg Config) []float64 {
	if in.Scores == nil {
		return nil
	}
	sign := 1.0
	if cfg.Side == Short {
		sign = -1
	}
	var out []float64
	for _, row := range in.Fold.Test {
		s, r := in.Scores[row], returns[row]
		if !finite(s) || !finite(r) {
			continue
		}
		if (cfg.Direction == AtOrBelow && s <= th) || (cfg.Direction != AtOrBelow && s >= th) {
			out = append(out, sign*r)
		}
	}
	return out
}

func evaluate(in FoldInput, returns []float64, th float64, cfg Config) models.ThresholdResult {
	res := models.ThresholdResult{Fold: in.Fold.Index, Threshold: th}
	trades := Trades(in, returns, th, cfg)
	res.Trades = len(trades)

	if in.Fold.Degenerate {
		res.Flags = append(res.Flags, models.FlagDegenerate)
	}
	if res.Trades == 0 {
		res.Degenerate = true
		res.Flags = append(res.Flags, models.FlagNoTrades)
		return res
	}
	if res.Trades < max(cfg.MinTrades, minSharpeTrades) {
		res.Degenerate = true
		res.Flags = append(res.Flags, models.FlagFewTrades)
	}

	res.MeanReturn = stat.Mean(trades, nil)
	if res.Trades > 1 {
		res.StdReturn = stat.StdDev(trades, nil)
	}
	// the epsilon guard turns zero spread into an unbounded Sharpe
	if res.StdReturn == 0 {
		res.Degenerate = true
		res.Flags = append(res.Flags, models.FlagZeroVariance)
	}
	res.Sharpe = res.MeanReturn / (res.StdReturn + cfg.Eps) * math.Sqrt(PeriodsPerYear(cfg.Cadence))
	res.Cumulative = Compound(trades)

	wins := 0
	for _, r := range trades {
		if r > 0 {
			wins++
		}
	}
	res.HitRate = float64(wins) / float64(res.Trades)
	return res
}

// Compound returns the product of (1+r) over rs, minus one.
func Compound(rs []float64) float64 {
	acc := 1.0
	for _, r := range rs {
		acc *= 1 + r
	}
	return acc - 1
}

// best returns a copy of the highest-Sharpe result with at least one trade
// among those accepted by keep. Ties keep the earliest.
func best(rs []models.ThresholdResult, keep func(models.ThresholdResult) bool) *models.ThresholdResult {
	var out *models.ThresholdResult
	for i := range rs {
		r := rs[i]
		if r.Trades == 0 || !keep(r) {
			continue
		}
		if out == nil || r.Sharpe > out.Sharpe {
			c := r
			c.Flags = append([]string(nil), r.Flags...)
			out = &c
		}
	}
	return out
}

func summarize(folds []models.FoldEvaluation, thresholds []float64) []models.ThresholdSummary {
	out := make([]models.ThresholdSummary, len(thresholds))
	for i, th := range thresholds {
		s := models.ThresholdSummary{Threshold: th}
		var sharpes []float64
		for _, fe := range folds {
			r := fe.Results[i]
			s.TotalTrades += r.Trades
			if r.Trades > 0 {
				s.FoldsWithTrades++
				sharpes = append(sharpes, r.Sharpe)
			}
		}
		if len(sharpes) > 0 {
			s.MeanSharpe = stat.Mean(sharpes, nil)
		}
		out[i] = s
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
