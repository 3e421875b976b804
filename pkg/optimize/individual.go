// Package optimize implements the multi-objective genetic search over
// trading-strategy parameter spaces: candidate individuals and their genetic
// operators, population fitness evaluation against the backtest runner,
// Pareto elite selection and the generation-driving evolution engine.
package optimize

import (
	"math/rand"
	"sort"

	"github.com/stratevolve/stratevolve/pkg/backtest"
)

// ============================================================================
// INDIVIDUAL
// ============================================================================

// Individual is one candidate solution: a mapping from gene name to a value
// inside its declared range. Individuals are never mutated in place after
// evaluation; genetic operators always produce new ones.
type Individual struct {
	Genes map[string]float64 `json:"genes"`
}

// NewIndividual creates an individual with an empty genome
func NewIndividual() Individual {
	return Individual{Genes: make(map[string]float64)}
}

// Clone returns an independent copy of the individual
func (ind Individual) Clone() Individual {
	clone := Individual{Genes: make(map[string]float64, len(ind.Genes))}
	for k, v := range ind.Genes {
		clone.Genes[k] = v
	}
	return clone
}

// Population is the ordered set of individuals for one generation. It is
// replaced wholesale each generation, never partially mutated.
type Population []Individual

// ============================================================================
// GENETIC OPERATORS
// ============================================================================

// InitPopulation creates a random population: every gene uniform within its
// declared range, integer genes rounded.
func InitPopulation(ranges []backtest.ParamRange, size int, rng *rand.Rand) Population {
	population := make(Population, size)
	for i := 0; i < size; i++ {
		ind := NewIndividual()
		for _, r := range ranges {
			ind.Genes[r.Name] = randomValue(r, rng)
		}
		population[i] = ind
	}
	return population
}

// Mutate returns a copy of the individual with each non-fixed gene perturbed
// with probability rate. The perturbation is a bounded delta of up to a
// quarter of the gene's span in either direction, clamped back into range.
// Fixed ranges (min == max) are never touched.
func Mutate(ind Individual, ranges []backtest.ParamRange, rate float64, rng *rand.Rand) Individual {
	mutated := ind.Clone()

	for _, r := range ranges {
		if r.Fixed() {
			continue
		}
		if rng.Float64() >= rate {
			continue
		}

		span := r.Max - r.Min
		delta := (rng.Float64()*2 - 1) * span * 0.25
		current, ok := mutated.Genes[r.Name]
		if !ok {
			current = r.Default()
		}
		mutated.Genes[r.Name] = r.Clamp(current + delta)
	}

	return mutated
}

// Crossover exchanges genes between two parents at a single randomly chosen
// cut point over the deterministic gene order, producing two children. With
// one gene there is nothing to cut, so the children are copies.
func Crossover(a, b Individual, ranges []backtest.ParamRange, rng *rand.Rand) (Individual, Individual) {
	child1 := a.Clone()
	child2 := b.Clone()

	names := geneOrder(ranges)
	if len(names) < 2 {
		return child1, child2
	}

	cut := 1 + rng.Intn(len(names)-1)
	for _, name := range names[cut:] {
		av, aok := a.Genes[name]
		bv, bok := b.Genes[name]
		if aok && bok {
			child1.Genes[name] = bv
			child2.Genes[name] = av
		}
	}

	return child1, child2
}

// geneOrder returns the gene names in a stable order so crossover cut points
// are well defined regardless of map iteration order
func geneOrder(ranges []backtest.ParamRange) []string {
	names := make([]string, len(ranges))
	for i, r := range ranges {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}

func randomValue(r backtest.ParamRange, rng *rand.Rand) float64 {
	if r.Fixed() {
		return r.Clamp(r.Min)
	}
	return r.Clamp(r.Min + rng.Float64()*(r.Max-r.Min))
}
