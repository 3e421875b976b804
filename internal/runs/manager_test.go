package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
	"github.com/stratevolve/stratevolve/pkg/optimize"
)

func testMonitor() *backtest.MonitorConfig {
	return &backtest.MonitorConfig{
		Name: "test-monitor",
		Indicators: []backtest.IndicatorSpec{
			{
				Name: "sma_main",
				Kind: "sma",
				Params: []backtest.ParamRange{
					{Name: "period", Min: 5, Max: 20, Integer: true},
				},
			},
		},
		Bars: []backtest.BarSpec{
			{
				Name: "score",
				Weights: []backtest.BarWeight{
					{Indicator: "sma_main", Weight: backtest.ParamRange{Min: 1, Max: 1}},
				},
			},
		},
		EntryThreshold: backtest.ParamRange{Min: 0.5, Max: 0.5},
		ExitThreshold:  backtest.ParamRange{Min: -0.5, Max: -0.5},
		Executor:       backtest.ExecutorConfig{PositionSize: 1.0},
	}
}

func flatTicks(n int) []ledger.Tick {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]ledger.Tick, n)
	for i := range ticks {
		ticks[i] = ledger.Tick{
			Symbol:    "BTCUSDT",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 100, Low: 100, Close: 100,
			Volume: 1000,
		}
	}
	return ticks
}

func quickConfig() optimize.EngineConfig {
	cfg := optimize.DefaultEngineConfig()
	cfg.PopulationSize = 4
	cfg.Generations = 2
	cfg.EliteCount = 1
	cfg.ConvergenceWindow = 0
	cfg.Seed = 7
	return cfg
}

func TestManagerStartRunsToCompletion(t *testing.T) {
	m := NewManager()
	id, err := m.Start(quickConfig(), testMonitor(), nil, flatTicks(40))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, id))

	status, err := m.Poll(id)
	require.NoError(t, err)
	assert.True(t, status.Done)
	assert.Empty(t, status.Error)
	require.NotNil(t, status.Result)
	assert.Equal(t, optimize.ReasonGenerationsExhausted, status.Result.Reason)
	assert.Equal(t, 2, status.Result.Generations)
	assert.Len(t, status.Report.History, 2)
	assert.NotNil(t, status.Finished)
}

func TestManagerStartRejectsBadInput(t *testing.T) {
	m := NewManager()

	_, err := m.Start(quickConfig(), testMonitor(), nil, nil)
	assert.Error(t, err, "no price history")

	bad := quickConfig()
	bad.PopulationSize = 1
	_, err = m.Start(bad, testMonitor(), nil, flatTicks(10))
	assert.Error(t, err, "invalid engine config")
}

func TestManagerStopAtGenerationBoundary(t *testing.T) {
	cfg := quickConfig()
	cfg.PopulationSize = 30
	cfg.Generations = 100000

	m := NewManager()
	id, err := m.Start(cfg, testMonitor(), nil, flatTicks(5000))
	require.NoError(t, err)

	require.NoError(t, m.Stop(id))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, id))

	status, err := m.Poll(id)
	require.NoError(t, err)
	require.NotNil(t, status.Result)
	assert.Equal(t, optimize.ReasonStopped, status.Result.Reason)
	assert.GreaterOrEqual(t, status.Result.Generations, 1, "the in-flight generation completes")
}

func TestManagerUnknownRun(t *testing.T) {
	m := NewManager()

	_, err := m.Poll("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, m.Stop("nope"), ErrRunNotFound)
	assert.ErrorIs(t, m.Remove("nope"), ErrRunNotFound)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	id, err := m.Start(quickConfig(), testMonitor(), nil, flatTicks(40))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, id))

	require.NoError(t, m.Remove(id))
	_, err = m.Poll(id)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManagerList(t *testing.T) {
	m := NewManager()
	assert.Empty(t, m.List())

	id1, err := m.Start(quickConfig(), testMonitor(), nil, flatTicks(40))
	require.NoError(t, err)
	id2, err := m.Start(quickConfig(), testMonitor(), nil, flatTicks(40))
	require.NoError(t, err)

	statuses := m.List()
	require.Len(t, statuses, 2)
	ids := []string{statuses[0].ID, statuses[1].ID}
	assert.ElementsMatch(t, []string{id1, id2}, ids)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.Shutdown(ctx)
}
