package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverRecordsHistory(t *testing.T) {
	objectives := DefaultObjectives()
	obs := NewObserver(objectives, 10)

	assert.Equal(t, StateInitializing, obs.State())
	assert.Empty(t, obs.EliteFront())
	assert.Empty(t, obs.History())

	stats := []IndividualStats{
		statsWithFitness(10, -2),
		statsWithFitness(4, 0),
		SentinelStats(NewIndividual(), 2),
	}
	elite := SelectElite(stats, 2, objectives, TieBreakWeightedSum)

	obs.SetState(StateEvaluating)
	obs.RecordGeneration(0, stats, elite)

	history := obs.History()
	require.Len(t, history, 1)
	rec := history[0]
	assert.Equal(t, 0, rec.Generation)
	assert.Equal(t, 2, rec.Evaluated)
	assert.Equal(t, 1, rec.Failed)
	assert.InDelta(t, 8.0, rec.BestWeightedScore, 1e-9)

	require.Len(t, rec.Objectives, 2)
	assert.Equal(t, ObjectiveTotalPnL, rec.Objectives[0].Name)
	assert.InDelta(t, 10.0, rec.Objectives[0].Best, 1e-9)
	assert.InDelta(t, 7.0, rec.Objectives[0].Average, 1e-9, "sentinels excluded from the average")
	assert.InDelta(t, 0.0, rec.Objectives[1].Best, 1e-9)
	assert.InDelta(t, -1.0, rec.Objectives[1].Average, 1e-9)
}

func TestObserverAccessorsReturnCopies(t *testing.T) {
	objectives := DefaultObjectives()
	obs := NewObserver(objectives, 10)

	stats := []IndividualStats{statsWithFitness(1, 1)}
	obs.RecordGeneration(0, stats, stats)

	front := obs.EliteFront()
	require.Len(t, front, 1)
	front[0].Fitness = []float64{99, 99}

	again := obs.EliteFront()
	assert.Equal(t, []float64{1, 1}, again[0].Fitness)

	history := obs.History()
	history[0].Generation = 42
	assert.Equal(t, 0, obs.History()[0].Generation)
}

func TestObserverLatestReport(t *testing.T) {
	objectives := DefaultObjectives()
	obs := NewObserver(objectives, 7)

	report := obs.LatestReport()
	assert.Equal(t, StateInitializing, report.State)
	assert.Equal(t, 7, report.MaxGenerations)
	assert.Nil(t, report.Best)

	stats := []IndividualStats{
		statsWithFitness(3, 0),
		statsWithFitness(1, 1),
	}
	elite := SelectElite(stats, 2, objectives, TieBreakWeightedSum)
	obs.SetState(StateSelecting)
	obs.RecordGeneration(2, stats, elite)

	report = obs.LatestReport()
	assert.Equal(t, StateSelecting, report.State)
	assert.Equal(t, 2, report.Generation)
	require.NotNil(t, report.Best)
	assert.Equal(t, elite[0].Fitness, report.Best.Fitness)
	assert.Len(t, report.History, 1)
}
