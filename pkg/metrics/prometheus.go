package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinLab/internal/domain/repository"
)

var _ repository.Metrics = (*Recorder)(nil)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	stageLatency *prometheus.HistogramVec
	stageErrors  *prometheus.CounterVec
	degenerate   *prometheus.CounterVec
	matrixRows   *prometheus.GaugeVec
	cache        *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

// New registers the pipeline collectors on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finlab",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finlab",
			Name:      "stage_errors_total",
			Help:      "Failed pipeline stages",
		}, []string{"stage"}),
		degenerate: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finlab",
			Name:      "degenerate_folds_total",
			Help:      "Folds reported degenerate by the splitter",
		}, []string{"ticker"}),
		matrixRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "finlab",
			Name:      "matrix_rows",
			Help:      "Rows in the last feature matrix built per ticker",
		}, []string{"ticker"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finlab",
			Name:      "indicator_set_cache_total",
			Help:      "Indicator set cache lookups",
		}, []string{"result"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finlab",
			Name:      "errors_total",
			Help:      "Pipeline errors by kind",
		}, []string{"kind"}),
	}
}

func (r *Recorder) RecordStage(stage string, d time.Duration, err error) {
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		r.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (r *Recorder) RecordDegenerateFolds(ticker string, n int) {
	if n > 0 {
		r.degenerate.WithLabelValues(ticker).Add(float64(n))
	}
}

func (r *Recorder) RecordMatrixRows(ticker string, rows int) {
	r.matrixRows.WithLabelValues(ticker).Set(float64(rows))
}

func (r *Recorder) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Nop discards everything.
type Nop struct{}

var _ repository.Metrics = Nop{}

func (Nop) RecordStage(string, time.Duration, error) {}
func (Nop) RecordDegenerateFolds(string, int)        {}
func (Nop) RecordMatrixRows(string, int)             {}
func (Nop) RecordCache(bool)                         {}
func (Nop) RecordError(string)                       {}
