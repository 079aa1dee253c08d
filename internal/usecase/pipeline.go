package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
	domsvc "FinLab/internal/domain/service"
	"FinLab/internal/services/evaluator"
	"FinLab/internal/services/features"
	"FinLab/internal/services/labels"
	"FinLab/internal/services/session"
	"FinLab/internal/services/splitter"
	"FinLab/pkg/config"
	applogger "FinLab/pkg/logger"
	"FinLab/pkg/metrics"
)

const (
	LabelForward     = "forward"
	LabelCloseToOpen = "close_to_open"
)

// FeatureBuilder appends indicator and engineered columns to a bar frame.
type FeatureBuilder interface {
	Build(f *models.Frame, descs []models.IndicatorDescriptor, flow []models.FlowRecord) (*models.Frame, error)
}

// Options are the run defaults; RunParams override some of them per run.
type Options struct {
	RejectDuplicates bool
	Label            string
	ForwardDays      int
	Band             float64
	CloseOpenBand    float64
	Folds            int
	Embargo          int
	Purge            bool
	TrainWindow      int
	MinTrain         int
	Thresholds       []float64
	Direction        evaluator.Direction
	Side             evaluator.Side
	Cadence          domrepo.Cadence
	Eps              float64
	MinTrades        int
	ScoreColumn      string
	Select           features.SelectPolicy
	Timeout          time.Duration
	SetRef           string
}

func OptionsFromConfig(p config.Pipeline) Options {
	return Options{
		RejectDuplicates: p.RejectDuplicates,
		Label:            p.Label,
		ForwardDays:      p.ForwardDays,
		Band:             p.Band,
		CloseOpenBand:    p.CloseOpenBand,
		Folds:            p.Folds,
		Embargo:          p.Embargo,
		Purge:            !p.DisablePurge,
		TrainWindow:      p.TrainWindow,
		MinTrain:         p.MinTrainRows,
		Thresholds:       append([]float64(nil), p.Thresholds...),
		Direction:        evaluator.Direction(p.Direction),
		Side:             evaluator.Side(p.Side),
		Cadence:          domrepo.NormalizeCadence(p.Cadence),
		Eps:              p.Epsilon,
		MinTrades:        p.MinTrades,
		ScoreColumn:      p.ScoreColumn,
		Select:           features.SelectPolicy{Prefixes: p.FeaturePrefixes},
		Timeout:          p.Timeout,
		SetRef:           p.IndicatorSetPath,
	}
}

// RunParams select one ticker and range. Zero fields fall back to Options.
type RunParams struct {
	Ticker   string
	ModelID  string
	From, To time.Time
	Cadence  domrepo.Cadence
	Label    string
	// Folds of 0 uses the configured count.
	Folds int
	// Embargo of nil uses the configured embargo; 0 disables it.
	Embargo    *int
	Thresholds []float64
	Indicators []models.IndicatorDescriptor
	SetRef     string
	Persist    bool
}

// Pipeline runs load, build, label, split, score, evaluate and persist for
// one ticker. Stages run in order and each one's output is a new value.
type Pipeline struct {
	bars     domrepo.BarProvider
	flow     domrepo.FlowProvider
	builder  FeatureBuilder
	resolver *IndicatorSetResolver
	cal      *session.Calendar
	scorer   domsvc.Scorer
	matrix   domrepo.MatrixSink
	results  domrepo.ResultSink
	metrics  domrepo.Metrics
	opts     Options
	l        *applogger.Logger
	now      func() time.Time
}

type PipelineOption func(*Pipeline)

func WithFlowProvider(f domrepo.FlowProvider) PipelineOption {
	return func(p *Pipeline) { p.flow = f }
}

func WithScorer(s domsvc.Scorer) PipelineOption {
	return func(p *Pipeline) { p.scorer = s }
}

func WithSinks(m domrepo.MatrixSink, r domrepo.ResultSink) PipelineOption {
	return func(p *Pipeline) {
		p.matrix = m
		p.results = r
	}
}

func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(bars domrepo.BarProvider, builder FeatureBuilder, resolver *IndicatorSetResolver, cal *session.Calendar, opts Options, l *applogger.Logger, options ...PipelineOption) *Pipeline {
	if l == nil {
		l = applogger.Nop()
	}
	if cal == nil {
		cal = session.UTC()
	}
	p := &Pipeline{
		bars:     bars,
		builder:  builder,
		resolver: resolver,
		cal:      cal,
		opts:     opts,
		metrics:  metrics.Nop{},
		l:        l,
		now:      time.Now,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// runState carries stage outputs through one run.
type runState struct {
	p        RunParams
	setKey   string
	descs    []models.IndicatorDescriptor
	frame    *models.Frame
	report   models.IntegrityReport
	flow     []models.FlowRecord
	labeled  labels.Result
	features []string
	rows     []int
	dropped  int
	matrix   *models.Frame
	horizons []time.Time
	folds    []models.Fold
	inputs   []evaluator.FoldInput
	eval     *models.Evaluation
}

// Run executes every stage for p.Ticker. Any stage failure is returned as a
// *StageError and no partial result is produced.
func (pl *Pipeline) Run(ctx context.Context, p RunParams) (*models.RunResult, error) {
	p = pl.withDefaults(p)
	if pl.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pl.opts.Timeout)
		defer cancel()
	}
	started := pl.now()
	st := &runState{p: p}

	stages := []struct {
		name string
		fn   func(context.Context, *runState) error
	}{
		{StageLoad, pl.load},
		{StageBuilder, pl.build},
		{StageLabel, pl.label},
		{StageSplit, pl.split},
		{StageScore, pl.score},
		{StageEvaluate, pl.evaluate},
	}
	for _, s := range stages {
		if err := pl.runStage(ctx, st, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	res := &models.RunResult{
		RunID:       uuid.NewString(),
		Ticker:      p.Ticker,
		ModelID:     p.ModelID,
		SetKey:      st.setKey,
		Label:       st.labeled.Label,
		Rows:        st.matrix.Len(),
		DroppedRows: st.dropped,
		Features:    st.features,
		Integrity:   st.report,
		Folds:       st.folds,
		Evaluation:  st.eval,
		StartedAt:   started.UTC(),
	}
	if p.Persist {
		err := pl.runStage(ctx, st, StagePersist, func(ctx context.Context, st *runState) error {
			return pl.persist(ctx, st, res)
		})
		if err != nil {
			return nil, err
		}
	}
	res.Duration = pl.now().Sub(started)

	fields := []applogger.Field{
		applogger.String("run_id", res.RunID),
		applogger.String("ticker", res.Ticker),
		applogger.Int("rows", res.Rows),
		applogger.Int("features", len(res.Features)),
		applogger.Int("folds", len(res.Folds)),
		applogger.Duration("duration_ms", res.Duration),
	}
	if b := res.Evaluation.BestRobust; b != nil {
		fields = append(fields, applogger.Float64("robust_threshold", b.Threshold), applogger.Float64("robust_sharpe", b.Sharpe))
	}
	pl.l.Info("pipeline run complete", fields...)
	return res, nil
}

func (pl *Pipeline) runStage(ctx context.Context, st *runState, name string, fn func(context.Context, *runState) error) error {
	if err := ctx.Err(); err != nil {
		return pl.fail(name, st.p, -1, err)
	}
	start := time.Now()
	err := fn(ctx, st)
	pl.metrics.RecordStage(name, time.Since(start), err)
	if err == nil {
		return nil
	}
	if se, ok := err.(*StageError); ok {
		return se
	}
	return pl.fail(name, st.p, -1, err)
}

func (pl *Pipeline) fail(stage string, p RunParams, fold int, err error) *StageError {
	se := stageErr(stage, p.Ticker, p.ModelID, fold, err)
	pl.metrics.RecordError(se.Kind)
	pl.l.Error("pipeline stage failed",
		applogger.String("stage", stage),
		applogger.String("ticker", p.Ticker),
		applogger.String("kind", se.Kind),
		applogger.Int("fold", fold),
		applogger.Error(err))
	return se
}

func (pl *Pipeline) withDefaults(p RunParams) RunParams {
	if p.Cadence == "" {
		p.Cadence = pl.opts.Cadence
	}
	if p.Label == "" {
		p.Label = pl.opts.Label
	}
	if p.Folds == 0 {
		p.Folds = pl.opts.Folds
	}
	if p.Embargo == nil {
		e := pl.opts.Embargo
		p.Embargo = &e
	}
	if len(p.Thresholds) == 0 {
		p.Thresholds = pl.opts.Thresholds
	}
	if p.SetRef == "" {
		p.SetRef = pl.opts.SetRef
	}
	return p
}

func (pl *Pipeline) load(ctx context.Context, st *runState) error {
	p := st.p
	if p.Ticker == "" {
		return fmt.Errorf("%w: ticker required", ErrConfig)
	}
	if !domrepo.IsValidCadence(p.Cadence) {
		return fmt.Errorf("%w: cadence %q", ErrConfig, p.Cadence)
	}
	if p.Label != LabelForward && p.Label != LabelCloseToOpen {
		return fmt.Errorf("%w: label %q", ErrConfig, p.Label)
	}
	if pl.bars == nil {
		return fmt.Errorf("%w: no bar provider configured", ErrConfig)
	}

	bars, err := pl.bars.GetBars(ctx, p.Ticker, p.From, p.To, p.Cadence)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w: %s %s..%s", ErrNoData, p.Ticker, p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
	}
	f, rep, err := models.FrameFromBars(p.Ticker, bars)
	if err != nil {
		return err
	}
	if rep.Resorted || len(rep.Duplicates) > 0 {
		pl.l.Warn("bar integrity issues",
			applogger.String("ticker", p.Ticker),
			applogger.Bool("resorted", rep.Resorted),
			applogger.Int("duplicates", len(rep.Duplicates)))
	}
	if pl.opts.RejectDuplicates && len(rep.Duplicates) > 0 {
		return fmt.Errorf("%s: %w: %d rows, first %s", p.Ticker, models.ErrDuplicateTimestamp,
			len(rep.Duplicates), rep.Duplicates[0].Format(time.RFC3339))
	}
	st.frame, st.report = f, rep

	if pl.flow != nil {
		flow, err := pl.flow.GetFlow(ctx, p.Ticker, p.From, p.To, p.Cadence)
		if err != nil {
			return fmt.Errorf("flow: %w", err)
		}
		st.flow = flow
	}
	return nil
}

func (pl *Pipeline) build(ctx context.Context, st *runState) error {
	key, descs, err := pl.resolver.Resolve(ctx, st.p.SetRef, st.p.Indicators)
	if err != nil {
		return err
	}
	st.setKey, st.descs = key, descs

	built, err := pl.builder.Build(st.frame, descs, st.flow)
	if err != nil {
		return err
	}
	st.frame = built
	return nil
}

func (pl *Pipeline) label(_ context.Context, st *runState) error {
	var (
		res labels.Result
		err error
	)
	switch st.p.Label {
	case LabelCloseToOpen:
		res, err = labels.CloseToOpenDirection(st.frame, pl.cal, pl.opts.CloseOpenBand)
	default:
		res, err = labels.ForwardReturnDays(st.frame, pl.cal, pl.opts.ForwardDays, true, pl.opts.Band)
	}
	if err != nil {
		return err
	}
	st.labeled = res
	return nil
}

// split drops rows with any non-finite feature (indicator warm-up, missing
// flow) and cuts the remainder into folds.
func (pl *Pipeline) split(_ context.Context, st *runState) error {
	f := st.labeled.Frame
	cols, err := features.SelectFeatures(f, pl.opts.Select)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: no feature columns selected", ErrConfig)
	}
	st.features = cols
	st.rows = features.CompleteRows(f, cols)
	st.matrix = f.Take(st.rows)
	pl.metrics.RecordMatrixRows(st.p.Ticker, st.matrix.Len())
	if st.dropped = f.Len() - len(st.rows); st.dropped > 0 {
		lead := 0
		if len(st.rows) > 0 {
			lead = st.rows[0]
		}
		l := pl.l.Debug
		// gaps past the leading warm-up mean a feature is missing mid-series
		if st.dropped > lead {
			l = pl.l.Warn
		}
		l("incomplete rows dropped",
			applogger.String("ticker", st.p.Ticker),
			applogger.Int("dropped", st.dropped),
			applogger.Int("warmup", lead),
			applogger.Int("rows", len(st.rows)))
	}

	st.horizons = make([]time.Time, len(st.rows))
	for i, r := range st.rows {
		st.horizons[i] = st.labeled.Horizon[r]
	}

	folds, err := splitter.Split(st.matrix.Index(), st.horizons, splitter.Config{
		Folds:       st.p.Folds,
		Embargo:     *st.p.Embargo,
		Purge:       pl.opts.Purge,
		TrainWindow: pl.opts.TrainWindow,
		MinTrain:    pl.opts.MinTrain,
	})
	if err != nil {
		return err
	}
	degenerate := 0
	for _, fo := range folds {
		if fo.Degenerate {
			degenerate++
			pl.l.Warn("degenerate fold",
				applogger.String("ticker", st.p.Ticker),
				applogger.Int("fold", fo.Index),
				applogger.String("reason", fo.Reason))
		}
	}
	pl.metrics.RecordDegenerateFolds(st.p.Ticker, degenerate)
	st.folds = folds
	return nil
}

// score takes scores from the configured score column when the frame has one;
// otherwise every non-degenerate fold is sent to the scorer.
func (pl *Pipeline) score(ctx context.Context, st *runState) error {
	m := st.matrix
	if col := pl.opts.ScoreColumn; col != "" {
		if scores, ok := m.Col(col); ok {
			for _, fo := range st.folds {
				st.inputs = append(st.inputs, evaluator.FoldInput{Fold: fo, Scores: scores})
			}
			return nil
		}
	}
	if pl.scorer == nil {
		return fmt.Errorf("%w: frame has no %q column and no scorer is configured", ErrConfig, pl.opts.ScoreColumn)
	}

	labelCol, _ := m.Strings(st.labeled.Label)
	for _, fo := range st.folds {
		if err := ctx.Err(); err != nil {
			return pl.fail(StageScore, st.p, fo.Index, err)
		}
		in := evaluator.FoldInput{Fold: fo}
		if fo.Degenerate {
			st.inputs = append(st.inputs, in)
			continue
		}
		var train []int
		var y []string
		for _, r := range fo.Train {
			if labelCol[r] != "" {
				train = append(train, r)
				y = append(y, labelCol[r])
			}
		}
		if len(train) == 0 {
			pl.l.Warn("fold has no labeled training rows", applogger.String("ticker", st.p.Ticker), applogger.Int("fold", fo.Index))
			st.inputs = append(st.inputs, in)
			continue
		}
		trainX, err := features.Matrix(m, st.features, train)
		if err != nil {
			return pl.fail(StageScore, st.p, fo.Index, err)
		}
		testX, err := features.Matrix(m, st.features, fo.Test)
		if err != nil {
			return pl.fail(StageScore, st.p, fo.Index, err)
		}
		probs, err := pl.scorer.Score(ctx, domsvc.ScoreRequest{
			Ticker:   st.p.Ticker,
			ModelID:  st.p.ModelID,
			Fold:     fo.Index,
			Features: st.features,
			Train:    trainX,
			Labels:   y,
			Test:     testX,
		})
		if err != nil {
			return pl.fail(StageScore, st.p, fo.Index, err)
		}
		scores := make([]float64, m.Len())
		for i := range scores {
			scores[i] = math.NaN()
		}
		for i, r := range fo.Test {
			scores[r] = probs[i]
		}
		in.Scores = scores
		st.inputs = append(st.inputs, in)
	}
	return nil
}

func (pl *Pipeline) evaluate(_ context.Context, st *runState) error {
	returns, ok := st.matrix.Col(st.labeled.Return)
	if !ok {
		return fmt.Errorf("return column %q missing", st.labeled.Return)
	}
	ev, err := evaluator.Sweep(st.inputs, returns, evaluator.Config{
		Thresholds: st.p.Thresholds,
		Direction:  pl.opts.Direction,
		Side:       pl.opts.Side,
		Cadence:    st.p.Cadence,
		Eps:        pl.opts.Eps,
		MinTrades:  pl.opts.MinTrades,
	})
	if err != nil {
		return err
	}
	st.eval = ev
	return nil
}

func (pl *Pipeline) persist(ctx context.Context, st *runState, res *models.RunResult) error {
	if pl.matrix != nil {
		if err := pl.matrix.SaveMatrix(ctx, res.RunID, st.matrix, st.features); err != nil {
			return fmt.Errorf("save matrix: %w", err)
		}
	}
	if pl.results != nil {
		if err := pl.results.SaveResult(ctx, res); err != nil {
			return fmt.Errorf("save result: %w", err)
		}
	}
	return nil
}
