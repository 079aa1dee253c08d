package di

import (
	"context"
	"testing"

	"FinLab/pkg/config"
	applogger "FinLab/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("pipeline:\n  timezone: UTC\n"))
	require.NoError(t, err)
	return cfg
}

func TestDisabledInfrastructureYieldsNil(t *testing.T) {
	cfg := testConfig(t)
	l := applogger.Nop()

	ch, err := ProvideClickHouseClient(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, ch)

	pg, err := ProvidePostgresClient(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, pg)

	p, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, ProvideReportPublisher(cfg, p))

	c, err := ProvideKafkaConsumer(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestBarStoreRequiresClickHouse(t *testing.T) {
	_, err := ProvideBarStore(nil, applogger.Nop())
	assert.ErrorIs(t, err, errNoBarSource)
}

func TestMemorySetCacheWithoutRedis(t *testing.T) {
	c, err := ProvideSetCache(testConfig(t))
	require.NoError(t, err)

	stored, err := c.SetIfAbsent(context.Background(), "k", []byte("v"), 0)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.NoError(t, c.Close())
}

func TestPipelineComponentsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	l := applogger.Nop()

	cal, err := ProvideCalendar(cfg)
	require.NoError(t, err)
	reg := ProvideRegistry(l)
	_, ok := reg.Get("rsi")
	assert.True(t, ok)

	b := ProvideBuilder(reg, cal, cfg, l)
	require.NotNil(t, b)

	cfg.Pipeline.SessionOpen, cfg.Pipeline.SessionClose = "25:00", "16:00"
	_, err = ProvideCalendar(cfg)
	assert.Error(t, err)
}

func TestBatchCloseRunsEveryCloser(t *testing.T) {
	var order []string
	b := &Batch{close: []func() error{
		func() error { order = append(order, "a"); return nil },
		func() error { order = append(order, "b"); return assert.AnError },
	}}
	assert.ErrorIs(t, b.Close(), assert.AnError)
	assert.Equal(t, []string{"b", "a"}, order)
}
