package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTickFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVLoaderReadsRows(t *testing.T) {
	path := writeTickFile(t, `timestamp,open,high,low,close,volume
2024-01-01T00:00:00Z,100,105,99,104,1200
2024-01-01T01:00:00Z,104,106,103,105,900
2024-01-01T02:00:00Z,105,107,104,106,1100
`)

	ticks, err := NewCSVLoader(path).Load(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, ticks, 3)

	assert.Equal(t, "BTCUSDT", ticks[0].Symbol)
	assert.Equal(t, 100.0, ticks[0].Open)
	assert.Equal(t, 105.0, ticks[0].High)
	assert.Equal(t, 99.0, ticks[0].Low)
	assert.Equal(t, 104.0, ticks[0].Close)
	assert.Equal(t, 1200.0, ticks[0].Volume)
	assert.True(t, ticks[1].Timestamp.After(ticks[0].Timestamp))
}

func TestCSVLoaderUnixMillisNoHeader(t *testing.T) {
	path := writeTickFile(t, "1704067200000,100,101,99,100.5,500\n1704070800000,100.5,102,100,101,600\n")

	ticks, err := NewCSVLoader(path).Load(context.Background(), "ETHUSDT", "1h", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ticks[0].Timestamp)
}

func TestCSVLoaderWindowFilter(t *testing.T) {
	path := writeTickFile(t, `2024-01-01T00:00:00Z,1,1,1,1,1
2024-01-01T01:00:00Z,2,2,2,2,2
2024-01-01T02:00:00Z,3,3,3,3,3
`)

	start := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 1, 30, 0, 0, time.UTC)
	ticks, err := NewCSVLoader(path).Load(context.Background(), "BTCUSDT", "1h", start, end)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, 2.0, ticks[0].Close)
}

func TestCSVLoaderErrors(t *testing.T) {
	_, err := NewCSVLoader("/nonexistent/ticks.csv").Load(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{})
	assert.Error(t, err)

	path := writeTickFile(t, "2024-01-01T00:00:00Z,1,1,notanumber,1,1\n")
	_, err = NewCSVLoader(path).Load(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{})
	assert.Error(t, err)

	empty := writeTickFile(t, "timestamp,open,high,low,close,volume\n")
	_, err = NewCSVLoader(empty).Load(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Time{})
	assert.Error(t, err, "header-only file has no usable rows")
}
