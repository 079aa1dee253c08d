package models

import "time"

// Fold is one walk-forward partition. Train and Test hold row positions of the
// frame the fold was cut from, both in ascending order.
type Fold struct {
	Index      int       `json:"index"`
	Train      []int     `json:"-"`
	Test       []int     `json:"-"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
	Purged     int       `json:"purged"`
	Embargoed  int       `json:"embargoed"`
	Degenerate bool      `json:"degenerate"`
	Reason     string    `json:"reason,omitempty"`
}

// Flags attached to threshold results.
const (
	FlagNoTrades      = "no_trades"
	FlagFewTrades     = "few_trades"
	FlagZeroVariance  = "zero_variance"
	FlagDegenerate    = "degenerate_fold"
	FlagSingleFoldMax = "single_fold_max"
)

// ThresholdResult is the backtest outcome of one threshold on one fold.
type ThresholdResult struct {
	Fold       int      `json:"fold"`
	Threshold  float64  `json:"threshold"`
	Trades     int      `json:"trades"`
	MeanReturn float64  `json:"mean_return"`
	StdReturn  float64  `json:"std_return"`
	Sharpe     float64  `json:"sharpe"`
	Cumulative float64  `json:"cumulative"`
	HitRate    float64  `json:"hit_rate"`
	Degenerate bool     `json:"degenerate"`
	Flags      []string `json:"flags,omitempty"`
}

// FoldEvaluation groups the sweep of one fold.
type FoldEvaluation struct {
	Fold       int               `json:"fold"`
	Degenerate bool              `json:"degenerate"`
	Reason     string            `json:"reason,omitempty"`
	Results    []ThresholdResult `json:"results"`
	Best       *ThresholdResult  `json:"best,omitempty"`
}

// ThresholdSummary aggregates one threshold across folds.
type ThresholdSummary struct {
	Threshold       float64 `json:"threshold"`
	MeanSharpe      float64 `json:"mean_sharpe"`
	TotalTrades     int     `json:"total_trades"`
	FoldsWithTrades int     `json:"folds_with_trades"`
}

// Evaluation is the full threshold sweep. Best is the single highest fold-level
// Sharpe and is prone to single-fold overfitting; BestRobust only considers
// results that carry no flags.
type Evaluation struct {
	Folds      []FoldEvaluation   `json:"folds"`
	Best       *ThresholdResult   `json:"best,omitempty"`
	BestRobust *ThresholdResult   `json:"best_robust,omitempty"`
	Summary    []ThresholdSummary `json:"summary"`
}

// RunResult is what one pipeline run hands to the persistence/reporting layer.
type RunResult struct {
	RunID       string          `json:"run_id"`
	Ticker      string          `json:"ticker"`
	ModelID     string          `json:"model_id,omitempty"`
	SetKey      string          `json:"indicator_set_key"`
	Label       string          `json:"label"`
	Rows        int             `json:"rows"`
	DroppedRows int             `json:"dropped_rows"`
	Features    []string        `json:"features"`
	Integrity   IntegrityReport `json:"integrity"`
	Folds       []Fold          `json:"folds"`
	Evaluation  *Evaluation     `json:"evaluation"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration"`
}

// BatchItem is the per-ticker outcome of a batch run.
type BatchItem struct {
	Ticker string     `json:"ticker"`
	Result *RunResult `json:"result,omitempty"`
	Stage  string     `json:"stage,omitempty"`
	Error  string     `json:"error,omitempty"`
}
