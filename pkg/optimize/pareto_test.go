package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDominates(t *testing.T) {
	assert.True(t, Dominates([]float64{2, 2}, []float64{1, 1}))
	assert.True(t, Dominates([]float64{2, 1}, []float64{1, 1}))
	assert.False(t, Dominates([]float64{1, 1}, []float64{1, 1}), "equal vectors do not dominate")
	assert.False(t, Dominates([]float64{2, 0}, []float64{1, 1}), "trade-off is incomparable")
	assert.False(t, Dominates([]float64{1, 1}, []float64{2, 2}))
	assert.False(t, Dominates([]float64{1}, []float64{1, 1}), "arity mismatch never dominates")
}

func TestParetoFronts(t *testing.T) {
	stats := []IndividualStats{
		statsWithFitness(1, 1), // dominated by (2,2)
		statsWithFitness(2, 2),
		statsWithFitness(3, 0), // incomparable with both
	}

	fronts := ParetoFronts(stats)
	require.Len(t, fronts, 2)
	assert.ElementsMatch(t, []int{1, 2}, fronts[0])
	assert.ElementsMatch(t, []int{0}, fronts[1])
}

func TestParetoFrontsSentinelsRankLast(t *testing.T) {
	sentinel := SentinelStats(NewIndividual(), 2)
	stats := []IndividualStats{
		sentinel,
		statsWithFitness(-5, -5), // worse than the sentinel's zeros, but valid
		statsWithFitness(1, 1),
	}

	fronts := ParetoFronts(stats)
	require.Len(t, fronts, 3)
	assert.Equal(t, []int{2}, fronts[0])
	assert.Equal(t, []int{1}, fronts[1])
	assert.Equal(t, []int{0}, fronts[2], "sentinel must rank behind every valid record")
}

func TestSelectEliteSizeBounds(t *testing.T) {
	stats := []IndividualStats{
		statsWithFitness(1, 0),
		statsWithFitness(0, 1),
		statsWithFitness(2, 2),
	}
	objectives := DefaultObjectives()

	assert.Empty(t, SelectElite(stats, 0, objectives, TieBreakWeightedSum))
	assert.Len(t, SelectElite(stats, 2, objectives, TieBreakWeightedSum), 2)
	assert.Len(t, SelectElite(stats, 10, objectives, TieBreakWeightedSum), 3, "elite never exceeds the population")
}

func TestSelectEliteTakesFrontsInOrder(t *testing.T) {
	stats := []IndividualStats{
		statsWithFitness(1, 1),
		statsWithFitness(2, 2),
		statsWithFitness(3, 3),
	}
	objectives := DefaultObjectives()

	elite := SelectElite(stats, 2, objectives, TieBreakWeightedSum)
	require.Len(t, elite, 2)
	assert.Equal(t, []float64{3, 3}, elite[0].Fitness)
	assert.Equal(t, []float64{2, 2}, elite[1].Fitness)
}

func TestSelectEliteWeightedSumTieBreak(t *testing.T) {
	// All three are mutually non-dominated; the weighted sum orders the front
	stats := []IndividualStats{
		statsWithFitness(1, 4), // sum 5
		statsWithFitness(3, 3), // sum 6
		statsWithFitness(4, 0), // sum 4
	}
	objectives := DefaultObjectives()

	elite := SelectElite(stats, 3, objectives, TieBreakWeightedSum)
	require.Len(t, elite, 3)
	assert.Equal(t, []float64{3, 3}, elite[0].Fitness)
	assert.Equal(t, []float64{1, 4}, elite[1].Fitness)
	assert.Equal(t, []float64{4, 0}, elite[2].Fitness)
}

func TestSelectEliteInsertionOrderTieBreak(t *testing.T) {
	stats := []IndividualStats{
		statsWithFitness(1, 4),
		statsWithFitness(3, 3),
		statsWithFitness(4, 0),
	}
	objectives := DefaultObjectives()

	elite := SelectElite(stats, 3, objectives, TieBreakInsertionOrder)
	require.Len(t, elite, 3)
	assert.Equal(t, []float64{1, 4}, elite[0].Fitness)
	assert.Equal(t, []float64{3, 3}, elite[1].Fitness)
	assert.Equal(t, []float64{4, 0}, elite[2].Fitness)
}

func TestWeightedScoreUsesWeights(t *testing.T) {
	s := statsWithFitness(10, 4)
	objectives := []ObjectiveSpec{
		{Name: ObjectiveTotalPnL, Weight: 1.0},
		{Name: ObjectiveMaxDrawdown, Weight: 0.5},
	}
	assert.InDelta(t, 12.0, s.WeightedScore(objectives), 1e-9)
}

func TestMaxDrawdownPct(t *testing.T) {
	// Cumulative curve: 10, 5, 12, 4 -> worst fall is 12 to 4
	p := portfolioWithPnLs([]float64{10, -5, 7, -8})
	assert.InDelta(t, 8.0, MaxDrawdownPct(p), 0.2)

	assert.Zero(t, MaxDrawdownPct(portfolioWithPnLs(nil)))
	assert.Zero(t, MaxDrawdownPct(portfolioWithPnLs([]float64{5, 5})), "monotonic gains have no drawdown")
}

func TestObjectiveRegistry(t *testing.T) {
	p := portfolioWithPnLs([]float64{10, -5, 15})

	pnl, err := ObjectiveByName(ObjectiveTotalPnL)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, pnl(p), 1e-9)

	dd, err := ObjectiveByName(ObjectiveMaxDrawdown)
	require.NoError(t, err)
	assert.LessOrEqual(t, dd(p), 0.0, "drawdown objective is negated")

	winRate, err := ObjectiveByName(ObjectiveWinRate)
	require.NoError(t, err)
	assert.InDelta(t, 200.0/3.0, winRate(p), 1e-9)

	_, err = ObjectiveByName("sharpe_cubed")
	assert.Error(t, err)
}
