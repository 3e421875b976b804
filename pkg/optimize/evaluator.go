// Population fitness evaluation, sequential or across a worker pool
package optimize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// BacktestFunc runs one candidate's backtest and returns the completed
// portfolio. This is the fitness function the evaluator consumes; the
// default is a fresh backtest.Runner per call, so no simulation state is
// ever shared between concurrent evaluations.
type BacktestFunc func(values map[string]float64, ticks []ledger.Tick) (*ledger.Portfolio, error)

// evalResult is the transferable payload handed back from a worker: the
// finished portfolio only, re-associated with its individual by index. It
// deliberately contains nothing that could reference live runner state.
type evalResult struct {
	index     int
	portfolio *ledger.Portfolio
	err       error
}

// Evaluator turns a population into evaluation records, one per individual,
// in population order. Sequential and parallel execution produce records of
// identical shape; downstream code cannot tell which mode ran.
type Evaluator struct {
	objectives []ObjectiveSpec
	fns        []ObjectiveFunc
	backtest   BacktestFunc
	workers    int
}

// NewEvaluator creates an evaluator for one monitor configuration. workers
// of 0 or 1 selects sequential evaluation; anything above bounds the worker
// pool.
func NewEvaluator(cfg *backtest.MonitorConfig, objectives []ObjectiveSpec, workers int) (*Evaluator, error) {
	if len(objectives) == 0 {
		return nil, fmt.Errorf("no objectives configured")
	}

	fns := make([]ObjectiveFunc, len(objectives))
	for i, obj := range objectives {
		fn, err := ObjectiveByName(obj.Name)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}

	return &Evaluator{
		objectives: objectives,
		fns:        fns,
		workers:    workers,
		backtest: func(values map[string]float64, ticks []ledger.Tick) (*ledger.Portfolio, error) {
			return backtest.NewRunner(cfg).Run(values, ticks)
		},
	}, nil
}

// SetBacktest replaces the fitness function. Used by tests to inject
// failures and by callers that bring their own simulation.
func (e *Evaluator) SetBacktest(fn BacktestFunc) {
	e.backtest = fn
}

// Objectives returns the configured objective specs in fitness-vector order
func (e *Evaluator) Objectives() []ObjectiveSpec {
	return e.objectives
}

// Evaluate produces exactly one IndividualStats per individual, index for
// index. A failed or panicking evaluation yields a sentinel record and the
// generation continues; only an empty tick history is generation-fatal.
func (e *Evaluator) Evaluate(ctx context.Context, population Population, ticks []ledger.Tick) ([]IndividualStats, error) {
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no price data for generation")
	}
	if len(population) == 0 {
		return []IndividualStats{}, nil
	}

	var results []evalResult
	if e.workers > 1 {
		results = e.evaluateParallel(ctx, population, ticks)
	} else {
		results = e.evaluateSequential(ctx, population, ticks)
	}

	// Both paths converge here: the coordinator builds every record through
	// the same constructor, so record shape is independent of the mode.
	stats := make([]IndividualStats, len(population))
	for _, res := range results {
		if res.err != nil {
			log.Warn().
				Err(res.err).
				Int("individual", res.index).
				Msg("Evaluation failed, substituting sentinel record")
			stats[res.index] = SentinelStats(population[res.index], len(e.objectives))
			continue
		}
		stats[res.index] = NewIndividualStats(
			population[res.index],
			e.fitnessVector(res.portfolio),
			res.portfolio,
			ticks,
		)
	}

	return stats, nil
}

func (e *Evaluator) evaluateSequential(ctx context.Context, population Population, ticks []ledger.Tick) []evalResult {
	results := make([]evalResult, len(population))
	for i, ind := range population {
		if ctx.Err() != nil {
			// Cancellation mid-generation degrades the rest to sentinels;
			// the engine only stops cleanly at generation boundaries.
			results[i] = evalResult{index: i, err: ctx.Err()}
			continue
		}
		portfolio, err := e.runOne(ind, ticks)
		results[i] = evalResult{index: i, portfolio: portfolio, err: err}
	}
	return results
}

func (e *Evaluator) evaluateParallel(ctx context.Context, population Population, ticks []ledger.Tick) []evalResult {
	results := make([]evalResult, len(population))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, ind := range population {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = evalResult{index: i, err: gctx.Err()}
				return nil
			}
			portfolio, err := e.runOne(ind, ticks)
			// Workers hand back only the plain-data payload; errors are
			// carried in the result so one crash never cancels the group.
			results[i] = evalResult{index: i, portfolio: portfolio, err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// runOne executes one backtest with panic containment. A panicking
// evaluation is indistinguishable from an erroring one to the caller.
func (e *Evaluator) runOne(ind Individual, ticks []ledger.Tick) (portfolio *ledger.Portfolio, err error) {
	defer func() {
		if r := recover(); r != nil {
			portfolio = nil
			err = fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	return e.backtest(ind.Genes, ticks)
}

// fitnessVector computes the fixed-order objective scores for a portfolio
func (e *Evaluator) fitnessVector(portfolio *ledger.Portfolio) []float64 {
	fitness := make([]float64, len(e.fns))
	for i, fn := range e.fns {
		fitness[i] = fn(portfolio)
	}
	return fitness
}
