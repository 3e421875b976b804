// Package backtest replays historical price ticks through one candidate
// strategy configuration and records the simulated trading activity in a
// ledger.Portfolio. The runner is deterministic: the same parameter values
// and tick history always produce the same portfolio.
package backtest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/stratevolve/stratevolve/internal/indicators"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// ============================================================================
// RUNNER
// ============================================================================

// Runner executes backtests for one monitor configuration
type Runner struct {
	cfg *MonitorConfig
}

// NewRunner creates a runner for the given monitor configuration. The
// configuration must already be validated.
func NewRunner(cfg *MonitorConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Run replays the tick history with the given parameter values and returns
// the completed portfolio.
//
// Per-tick indicator failures (warm-up, degenerate input) skip the tick for
// trading decisions but never abort the run: a whole indicator failing to
// compute simply contributes no signals, and the bar score is undefined for
// ticks where any constituent is undefined. Stop-loss and take-profit checks
// only need prices, so they still run on skipped ticks.
func (r *Runner) Run(values map[string]float64, ticks []ledger.Tick) (*ledger.Portfolio, error) {
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no price data")
	}

	entryScores, exitScores := r.barScores(values, ticks)

	entryThreshold := geneValue(values, r.cfg.EntryThreshold, GeneEntryThreshold)
	exitThreshold := geneValue(values, r.cfg.ExitThreshold, GeneExitThreshold)

	portfolio := ledger.NewPortfolio()
	exec := r.cfg.Executor

	for i, tick := range ticks {
		// Protective exits run on every tick while a position is open,
		// before the signal logic. Stops use the intrabar extremes.
		if !portfolio.IsFlat() {
			if exec.StopLossPct > 0 {
				stopPrice := portfolio.EntryPrice * (1 - exec.StopLossPct/100)
				if tick.Low <= stopPrice {
					r.apply(portfolio.CloseLong(tick.Timestamp, stopPrice, ledger.ReasonStopLoss))
					continue
				}
			}
			if exec.TakeProfitPct > 0 {
				targetPrice := portfolio.EntryPrice * (1 + exec.TakeProfitPct/100)
				if tick.High >= targetPrice {
					r.apply(portfolio.CloseLong(tick.Timestamp, targetPrice, ledger.ReasonTakeProfit))
					continue
				}
			}
		}

		if portfolio.IsFlat() {
			score := entryScores[i]
			if !math.IsNaN(score) && score >= entryThreshold {
				r.apply(portfolio.OpenLong(tick.Timestamp, exec.PositionSize, tick.Close))
			}
			continue
		}

		score := exitScores[i]
		if !math.IsNaN(score) && score <= exitThreshold {
			r.apply(portfolio.CloseLong(tick.Timestamp, tick.Close, ledger.ReasonExitLong))
		}
	}

	// Leave nothing open at the end of the data
	if !portfolio.IsFlat() {
		last := ticks[len(ticks)-1]
		r.apply(portfolio.CloseLong(last.Timestamp, last.Close, ledger.ReasonEndOfData))
	}

	return portfolio, nil
}

// apply logs ledger rejections instead of propagating them. The runner only
// issues trades that satisfy the ledger invariants, so a rejection here
// indicates a bug worth surfacing, not a condition worth aborting a whole
// population evaluation for.
func (r *Runner) apply(err error) {
	if err != nil {
		log.Warn().Err(err).Str("monitor", r.cfg.Name).Msg("Ledger rejected trade")
	}
}

// ============================================================================
// BAR SCORES
// ============================================================================

// barScores computes the entry and exit bar score series for the whole tick
// history. A score is NaN wherever any constituent indicator signal is
// undefined for that tick.
func (r *Runner) barScores(values map[string]float64, ticks []ledger.Tick) (entry, exit []float64) {
	closes := make([]float64, len(ticks))
	for i, t := range ticks {
		closes[i] = t.Close
	}

	signals := make(map[string][]float64, len(r.cfg.Indicators))
	for _, spec := range r.cfg.Indicators {
		series, err := r.indicatorSignal(spec, values, closes)
		if err != nil {
			// Silent skip: the indicator contributes no signal anywhere
			log.Debug().
				Err(err).
				Str("indicator", spec.Name).
				Msg("Indicator unavailable for this run")
			series = nanSeries(len(closes))
		}
		signals[spec.Name] = series
	}

	entry = r.scoreSeries(r.cfg.entryBar(), values, signals, len(ticks))
	exitBar := r.cfg.exitBar()
	if exitBar == r.cfg.entryBar() {
		exit = entry
	} else {
		exit = r.scoreSeries(exitBar, values, signals, len(ticks))
	}

	return entry, exit
}

// indicatorSignal resolves an indicator's parameter values from the genome
// and computes its signal series
func (r *Runner) indicatorSignal(spec IndicatorSpec, values map[string]float64, closes []float64) ([]float64, error) {
	params := make(indicators.Params, len(spec.Params))
	for _, p := range spec.Params {
		params[p.Name] = geneValue(values, p, GeneName(spec.Name, p.Name))
	}
	return indicators.Signal(indicators.Kind(spec.Kind), closes, params)
}

// scoreSeries computes one bar's weighted-sum score for every tick
func (r *Runner) scoreSeries(bar *BarSpec, values map[string]float64, signals map[string][]float64, n int) []float64 {
	scores := make([]float64, n)

	for i := 0; i < n; i++ {
		score := 0.0
		for _, w := range bar.Weights {
			signal := signals[w.Indicator][i]
			if math.IsNaN(signal) {
				score = math.NaN()
				break
			}
			weight := geneValue(values, w.Weight, WeightGeneName(bar.Name, w.Indicator))
			score += weight * signal
		}
		scores[i] = score
	}

	return scores
}

// geneValue looks up a gene in the genome, clamping it to its declared range.
// Missing genes fall back to the range midpoint so a partially specified
// individual still evaluates.
func geneValue(values map[string]float64, r ParamRange, gene string) float64 {
	if v, ok := values[gene]; ok {
		return r.Clamp(v)
	}
	return r.Default()
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// ============================================================================
// MARKET BASELINE
// ============================================================================

// MarketReturnPct returns the buy-and-hold return of the tick history in
// percent, used as the comparison baseline for every evaluated individual.
func MarketReturnPct(ticks []ledger.Tick) float64 {
	if len(ticks) < 2 {
		return 0
	}
	first := ticks[0].Close
	if first == 0 {
		return 0
	}
	last := ticks[len(ticks)-1].Close
	return (last - first) / first * 100.0
}
