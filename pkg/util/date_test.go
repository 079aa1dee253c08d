package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeFormats(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime("2024-10-10T10:10:10Z")
	require.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTime(strconv.FormatInt(want.Unix(), 10))
	require.True(t, ok)
	assert.Equal(t, want.Unix(), got.Unix())

	got, ok = ParseTime("2024-10-10")
	require.True(t, ok)
	assert.Equal(t, 10, got.Day())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	from, to, err := ParseRange("", "", 48*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-48*time.Hour), from)

	from, to, err = ParseRange("2024-01-01", "2024-02-01", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, time.January, from.Month())
	assert.Equal(t, time.February, to.Month())

	_, _, err = ParseRange("2024-02-01", "2024-01-01", time.Hour, now)
	assert.Error(t, err)
	_, _, err = ParseRange("bad", "", time.Hour, now)
	assert.Error(t, err)
}
