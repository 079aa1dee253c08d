package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinLab/internal/domain/models"
)

const setYAML = `
name: intraday
indicators:
  - name: rsi
    params: {period: 14}
  - name: macd
  - name: put_call_ratio
    params: {window: 5}
`

func TestYAMLSetLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intraday.yaml"), []byte(setYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("name: x\nindicators: []\n"), 0o600))

	l := NewYAMLSetLoader(filepath.Join(dir, "intraday.yaml"))
	for _, ref := range []string{"", "intraday", "intraday.yaml", filepath.Join(dir, "intraday.yaml")} {
		set, err := l.Load(context.Background(), ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "intraday", set.Name)
		assert.Equal(t, 1, set.Version)
		require.Len(t, set.Indicators, 3)
		assert.Equal(t, "rsi", set.Indicators[0].Name)
		assert.EqualValues(t, 14, set.Indicators[0].Params["period"])
	}

	_, err := l.Load(context.Background(), "empty")
	assert.Error(t, err)
	_, err = l.Load(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMatrixRowsDropNonFinite(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	f := models.NewFrame("SPY", []time.Time{t0, t0.Add(time.Hour)})
	f, err := f.WithColumns([]string{"rsi_14", "fwd_ret_1d"}, [][]float64{{math.NaN(), 55}, {0.01, math.NaN()}})
	require.NoError(t, err)
	f, err = f.WithStrings("label_fwd_1d", []string{"UP", ""})
	require.NoError(t, err)

	rows, err := matrixRows(f, []string{"rsi_14"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.JSONEq(t, `{}`, string(rows[0].features))
	assert.JSONEq(t, `{"fwd_ret_1d":0.01,"label_fwd_1d":"UP"}`, string(rows[0].labels))
	assert.JSONEq(t, `{"rsi_14":55}`, string(rows[1].features))
	assert.JSONEq(t, `{}`, string(rows[1].labels))

	_, err = matrixRows(f, []string{"nope"})
	assert.Error(t, err)
}

type capture struct {
	topic string
	key   string
	value []byte
	err   error
}

func (c *capture) Publish(_ context.Context, topic string, key []byte, value any) error {
	c.topic, c.key = topic, string(key)
	c.value, _ = json.Marshal(value)
	return c.err
}

func (c *capture) Close() error { return nil }

func TestKafkaReportPublisher(t *testing.T) {
	c := &capture{}
	p := NewKafkaReportPublisher(c, "finlab.reports")
	p.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	res := &models.RunResult{
		RunID: "r1", Ticker: "QQQ", Rows: 300, Features: []string{"a", "b"},
		Folds: []models.Fold{{Index: 0, Degenerate: true}, {Index: 1}},
		Evaluation: &models.Evaluation{
			Best: &models.ThresholdResult{Threshold: 0.6, Sharpe: 1.2, Trades: 4},
		},
	}
	require.NoError(t, p.PublishRun(context.Background(), res))
	assert.Equal(t, "finlab.reports", c.topic)
	assert.Equal(t, "QQQ", c.key)

	var got RunReport
	require.NoError(t, json.Unmarshal(c.value, &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 2, got.Features)
	assert.Equal(t, 1, got.Degenerate)
	require.NotNil(t, got.Best)
	assert.Equal(t, 0.6, got.Best.Threshold)

	require.NoError(t, p.PublishFailure(context.Background(), models.BatchItem{Ticker: "IWM", Stage: "load", Error: "no bars"}))
	require.NoError(t, json.Unmarshal(c.value, &got))
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "load", got.Stage)

	c.err = errors.New("broker down")
	assert.Error(t, p.PublishRun(context.Background(), res))
}

func TestTableFor(t *testing.T) {
	assert.Equal(t, "bars_1d", tableFor("bars", "daily"))
	assert.Equal(t, "bars_1h", tableFor("bars", "hourly"))
	assert.Equal(t, "option_flow_1h", tableFor("option_flow", "none"))
}
