// Per-individual evaluation records and their derived trading metrics
package optimize

import (
	"math"

	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// ============================================================================
// INDIVIDUAL STATS
// ============================================================================

// DistBucket is one histogram bucket of a P&L distribution
type DistBucket struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// IndividualStats is the complete evaluation record for one individual in
// one generation: its fitness vector plus every derived trading metric the
// reporting side needs. Built exactly once per (individual, generation),
// immediately after the backtest completes, and never mutated afterward.
//
// Every field is derivable purely from the portfolio and the tick history of
// the run, so the record has the same shape whether the evaluation ran
// sequentially or on a worker.
type IndividualStats struct {
	Individual Individual `json:"individual"`
	Fitness    []float64  `json:"fitness"`
	Valid      bool       `json:"valid"` // false for sentinel records

	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	TotalPnLPct    float64 `json:"total_pnl_pct"`
	AverageWinPct  float64 `json:"average_win_pct"`
	AverageLossPct float64 `json:"average_loss_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	// Buy-and-hold return of the same tick history, for comparison
	MarketReturnPct float64 `json:"market_return_pct"`

	// P&L percent of each closed trade, in execution order
	PnLSeries []float64 `json:"pnl_series"`

	// Histogram-ready win/loss distributions
	WinDistribution  []DistBucket `json:"win_distribution"`
	LossDistribution []DistBucket `json:"loss_distribution"`

	TradeHistory []ledger.Trade `json:"trade_history"`
}

// distributionBuckets is the number of histogram buckets per distribution
const distributionBuckets = 10

// NewIndividualStats builds the full evaluation record from a completed
// backtest. Both the sequential and the parallel evaluation path call this
// with identical arguments, which is what keeps the two modes
// indistinguishable downstream.
func NewIndividualStats(ind Individual, fitness []float64, portfolio *ledger.Portfolio, ticks []ledger.Tick) IndividualStats {
	pnls := portfolio.ClosedTradePnLs()

	stats := IndividualStats{
		Individual:      ind.Clone(),
		Fitness:         append([]float64(nil), fitness...),
		Valid:           true,
		TotalTrades:     len(pnls),
		TotalPnLPct:     portfolio.RealizedPnLPct,
		MaxDrawdownPct:  MaxDrawdownPct(portfolio),
		MarketReturnPct: backtest.MarketReturnPct(ticks),
		PnLSeries:       pnls,
		TradeHistory:    append([]ledger.Trade(nil), portfolio.Trades...),
	}

	var wins, losses []float64
	var winSum, lossSum float64
	for _, pnl := range pnls {
		if pnl > 0 {
			wins = append(wins, pnl)
			winSum += pnl
		} else {
			losses = append(losses, pnl)
			lossSum += pnl
		}
	}

	stats.WinningTrades = len(wins)
	stats.LosingTrades = len(losses)
	if len(wins) > 0 {
		stats.AverageWinPct = winSum / float64(len(wins))
	}
	if len(losses) > 0 {
		stats.AverageLossPct = lossSum / float64(len(losses))
	}

	stats.WinDistribution = buildDistribution(wins)
	stats.LossDistribution = buildDistribution(losses)

	return stats
}

// SentinelStats is the substitute record for a failed evaluation: a
// zero-valued fitness vector of the right arity and empty statistics, so the
// generation keeps its one-record-per-individual shape.
func SentinelStats(ind Individual, objectives int) IndividualStats {
	return IndividualStats{
		Individual:       ind.Clone(),
		Fitness:          make([]float64, objectives),
		Valid:            false,
		PnLSeries:        []float64{},
		WinDistribution:  []DistBucket{},
		LossDistribution: []DistBucket{},
		TradeHistory:     []ledger.Trade{},
	}
}

// WeightedScore collapses the fitness vector into one scalar using the
// objective weights, used for tie-breaking and convergence tracking.
func (s IndividualStats) WeightedScore(objectives []ObjectiveSpec) float64 {
	score := 0.0
	for i, obj := range objectives {
		if i < len(s.Fitness) {
			score += obj.Weight * s.Fitness[i]
		}
	}
	return score
}

// buildDistribution buckets values into a fixed-size histogram spanning
// their min..max range
func buildDistribution(values []float64) []DistBucket {
	if len(values) == 0 {
		return []DistBucket{}
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if lo == hi {
		return []DistBucket{{From: lo, To: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(distributionBuckets)
	buckets := make([]DistBucket, distributionBuckets)
	for i := range buckets {
		buckets[i] = DistBucket{
			From: lo + float64(i)*width,
			To:   lo + float64(i+1)*width,
		}
	}

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= distributionBuckets {
			idx = distributionBuckets - 1
		}
		buckets[idx].Count++
	}

	return buckets
}
