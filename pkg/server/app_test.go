package server

import (
	"context"
	"errors"
	"testing"

	"FinLab/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownClosesInReverseOrder(t *testing.T) {
	cfg, err := config.Parse([]byte("pipeline:\n  timezone: UTC\n"))
	require.NoError(t, err)

	app := New(cfg, nil, nil)
	var order []string
	app.AddCloser("clickhouse", func() error { order = append(order, "clickhouse"); return nil })
	app.AddCloser("postgres", func() error { order = append(order, "postgres"); return errors.New("already closed") })
	app.AddCloser("producer", func() error { order = append(order, "producer"); return nil })

	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, []string{"producer", "postgres", "clickhouse"}, order)
}
