package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratevolve/stratevolve/pkg/ledger"
)

func makeTicks(closes []float64) []ledger.Tick {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]ledger.Tick, len(closes))
	for i, c := range closes {
		ticks[i] = ledger.Tick{
			Symbol:    "BTCUSDT",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return ticks
}

func flatTicks(n int) []ledger.Tick {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100.0
	}
	return makeTicks(closes)
}

func risingTicks(n int) []ledger.Tick {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100.0 + float64(i)
	}
	return makeTicks(closes)
}

func oscillatingTicks(n int) []ledger.Tick {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100.0 + 10.0*math.Sin(float64(i)/20.0*2*math.Pi)
	}
	return makeTicks(closes)
}

func defaultValues(cfg *MonitorConfig) map[string]float64 {
	values := make(map[string]float64)
	for _, r := range cfg.ParamRanges() {
		values[r.Name] = r.Default()
	}
	return values
}

func TestRunner_FlatSeriesNeverTrades(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())
	runner := NewRunner(cfg)

	portfolio, err := runner.Run(defaultValues(cfg), flatTicks(100))
	require.NoError(t, err)

	assert.Equal(t, 0, portfolio.ClosedTrades())
	assert.Empty(t, portfolio.Trades)
	assert.Equal(t, 0.0, portfolio.RealizedPnLPct)
}

func TestRunner_Deterministic(t *testing.T) {
	cfg := testConfig()
	runner := NewRunner(cfg)
	ticks := oscillatingTicks(200)
	values := defaultValues(cfg)

	first, err := runner.Run(values, ticks)
	require.NoError(t, err)
	second, err := runner.Run(values, ticks)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunner_OscillatingSeriesTrades(t *testing.T) {
	cfg := testConfig()
	runner := NewRunner(cfg)

	portfolio, err := runner.Run(defaultValues(cfg), oscillatingTicks(200))
	require.NoError(t, err)

	assert.Greater(t, portfolio.ClosedTrades(), 0)
	assert.True(t, portfolio.IsFlat())
	assert.InDelta(t, portfolio.RealizedPnLPct, portfolio.RecomputeRealizedPnL(), 1e-9)
}

func TestRunner_EndOfDataClose(t *testing.T) {
	cfg := testConfig()
	runner := NewRunner(cfg)

	// A monotonically rising series opens a long that never sees an exit
	// signal, so the runner must flatten it on the last tick.
	portfolio, err := runner.Run(defaultValues(cfg), risingTicks(100))
	require.NoError(t, err)

	require.True(t, portfolio.IsFlat())
	require.NotEmpty(t, portfolio.Trades)
	last := portfolio.Trades[len(portfolio.Trades)-1]
	assert.Equal(t, ledger.ReasonEndOfData, last.Reason)
	assert.Greater(t, portfolio.RealizedPnLPct, 0.0)
}

func TestRunner_StopLoss(t *testing.T) {
	cfg := testConfig()
	cfg.Executor.StopLossPct = 5.0
	// Push the signal exit out of reach so the stop is the only way out
	cfg.ExitThreshold = ParamRange{Min: -10, Max: -10}
	runner := NewRunner(cfg)

	// Rise long enough to enter, then crash through the stop
	closes := make([]float64, 0, 60)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100.0+float64(i))
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, 139.0-8.0*float64(i))
	}

	portfolio, err := runner.Run(defaultValues(cfg), makeTicks(closes))
	require.NoError(t, err)

	var stops int
	for _, trade := range portfolio.Trades {
		if trade.Reason == ledger.ReasonStopLoss {
			stops++
		}
	}
	assert.Greater(t, stops, 0)
}

func TestRunner_TakeProfit(t *testing.T) {
	cfg := testConfig()
	cfg.Executor.TakeProfitPct = 10.0
	runner := NewRunner(cfg)

	portfolio, err := runner.Run(defaultValues(cfg), risingTicks(100))
	require.NoError(t, err)

	var targets int
	for _, trade := range portfolio.Trades {
		if trade.Reason == ledger.ReasonTakeProfit {
			targets++
		}
	}
	assert.Greater(t, targets, 0)

	pnls := portfolio.ClosedTradePnLs()
	require.NotEmpty(t, pnls)
	assert.InDelta(t, 10.0, pnls[0], 0.5)
}

func TestRunner_ShortHistorySkipsSilently(t *testing.T) {
	// Too few ticks for the SMA warm-up: the indicator is skipped for the
	// whole run, which means no trades, never an error.
	cfg := testConfig()
	runner := NewRunner(cfg)

	portfolio, err := runner.Run(defaultValues(cfg), risingTicks(3))
	require.NoError(t, err)
	assert.Empty(t, portfolio.Trades)
}

func TestRunner_NoDataIsError(t *testing.T) {
	runner := NewRunner(testConfig())

	_, err := runner.Run(map[string]float64{}, nil)
	assert.Error(t, err)
}

func TestRunner_OutOfRangeGenesAreClamped(t *testing.T) {
	cfg := testConfig()
	runner := NewRunner(cfg)

	values := defaultValues(cfg)
	values["sma_main.period"] = 10000 // clamped to 20

	portfolio, err := runner.Run(values, oscillatingTicks(200))
	require.NoError(t, err)
	assert.NotNil(t, portfolio)
}

func TestMarketReturnPct(t *testing.T) {
	assert.InDelta(t, 25.0, MarketReturnPct(makeTicks([]float64{100, 110, 125})), 1e-9)
	assert.Equal(t, 0.0, MarketReturnPct(makeTicks([]float64{100})))
	assert.Equal(t, 0.0, MarketReturnPct(nil))
}
