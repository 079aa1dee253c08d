package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = "pipeline:\n  timezone: UTC\n"

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 5, c.Pipeline.Folds)
	assert.Equal(t, 10, c.Pipeline.Embargo)
	assert.Equal(t, "forward", c.Pipeline.Label)
	assert.Equal(t, "hourly", c.Pipeline.Cadence)
	assert.Equal(t, []float64{0.5, 0.55, 0.6, 0.65, 0.7}, c.Pipeline.Thresholds)
	assert.Equal(t, 8760*time.Hour, c.Pipeline.Lookback)
	assert.Equal(t, "gzip", c.Kafka.Compression)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, 24*time.Hour, c.Redis.TTL)
	assert.False(t, c.Pipeline.DisablePurge)
}

func TestParseRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"bad label":          minimal + "  label: weekly\n",
		"open without close": minimal + "  session_open: \"09:30\"\n",
		"threshold range":    minimal + "  thresholds: [0.4, 1.5]\n",
		"zero folds":         minimal + "  folds: -1\n",
		"kafka no brokers":   minimal + "kafka:\n  enabled: true\n",
		"bad timezone":       "pipeline:\n  timezone: Mars/Olympus\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PIPELINE_FOLDS", "3")
	t.Setenv("SCORER_URL", "http://scorer:8000")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 3, c.Pipeline.Folds)
	assert.Equal(t, "http://scorer:8000", c.Scorer.URL)

	t.Setenv("PIPELINE_FOLDS", "three")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)
}
