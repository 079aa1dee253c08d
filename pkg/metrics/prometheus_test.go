package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordStage("split", time.Millisecond, nil)
	r.RecordStage("split", time.Millisecond, errors.New("x"))
	r.RecordDegenerateFolds("SPY", 2)
	r.RecordDegenerateFolds("SPY", 0)
	r.RecordMatrixRows("SPY", 420)
	r.RecordCache(true)
	r.RecordCache(false)
	r.RecordCache(false)
	r.RecordError("data")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageErrors.WithLabelValues("split")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.degenerate.WithLabelValues("SPY")))
	assert.Equal(t, 420.0, testutil.ToFloat64(r.matrixRows.WithLabelValues("SPY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("data")))
}
