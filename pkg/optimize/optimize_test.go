// Shared fixtures for the optimize package tests
package optimize

import (
	"time"

	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// testMonitor is a one-indicator strategy with a single tunable gene, the
// SMA period. Weights and thresholds are fixed so only the period mutates.
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

func testRanges() []backtest.ParamRange {
	return testMonitor().ParamRanges()
}

func makeTicks(closes []float64) []ledger.Tick {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]ledger.Tick, len(closes))
	for i, c := range closes {
		ticks[i] = ledger.Tick{
			Symbol:    "BTCUSDT",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
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

// portfolioWithPnLs builds a portfolio whose closed trades realize exactly
// the given P&L percentages, in order.
func portfolioWithPnLs(pnls []float64) *ledger.Portfolio {
	p := ledger.NewPortfolio()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, pnl := range pnls {
		_ = p.OpenLong(ts, 1, 100)
		_ = p.CloseLong(ts.Add(time.Minute), 100*(1+pnl/100), ledger.ReasonExitLong)
		ts = ts.Add(2 * time.Minute)
	}
	return p
}

// statsWithFitness builds a minimal valid record carrying only a fitness
// vector, for ranking tests that do not care about trading metrics.
func statsWithFitness(fitness ...float64) IndividualStats {
	return IndividualStats{
		Individual: NewIndividual(),
		Fitness:    fitness,
		Valid:      true,
	}
}

// pnlBacktest is a deterministic stand-in fitness function: it realizes a
// single trade whose P&L percent equals the named gene's value, so the
// result depends only on the genome.
func pnlBacktest(gene string) BacktestFunc {
	return func(values map[string]float64, ticks []ledger.Tick) (*ledger.Portfolio, error) {
		p := ledger.NewPortfolio()
		ts := ticks[0].Timestamp
		_ = p.OpenLong(ts, 1, 100)
		_ = p.CloseLong(ts.Add(time.Minute), 100*(1+values[gene]/100), ledger.ReasonExitLong)
		return p, nil
	}
}
