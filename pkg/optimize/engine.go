// ============================================================================
// EVOLUTION ENGINE
// ============================================================================
//
// The engine drives the generational loop. State transitions are strictly
// sequential; parallelism exists only inside one Evaluate call. Stop requests
// are honored at generation boundaries, never mid-generation.
package optimize

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// EngineState is one step of the generational state machine
type EngineState string

const (
	StateInitializing EngineState = "initializing"
	StateEvaluating   EngineState = "evaluating"
	StateSelecting    EngineState = "selecting"
	StateReproducing  EngineState = "reproducing"
	StateTerminated   EngineState = "terminated"
)

// TerminationReason explains why a run reached StateTerminated
type TerminationReason string

const (
	ReasonGenerationsExhausted TerminationReason = "generations_exhausted"
	ReasonConverged            TerminationReason = "converged"
	ReasonStopped              TerminationReason = "stopped"
	ReasonFatal                TerminationReason = "fatal_error"
)

// EngineConfig tunes one optimization run
type EngineConfig struct {
	PopulationSize int     `json:"population_size" yaml:"population_size" mapstructure:"population_size"`
	Generations    int     `json:"generations" yaml:"generations" mapstructure:"generations"`
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate" mapstructure:"mutation_rate"`
	CrossoverRate  float64 `json:"crossover_rate" yaml:"crossover_rate" mapstructure:"crossover_rate"`
	EliteCount     int     `json:"elite_count" yaml:"elite_count" mapstructure:"elite_count"`
	TournamentSize int     `json:"tournament_size" yaml:"tournament_size" mapstructure:"tournament_size"`

	// Terminate early when the best weighted score is unchanged for this
	// many consecutive generations. Zero disables convergence detection.
	ConvergenceWindow int `json:"convergence_window" yaml:"convergence_window" mapstructure:"convergence_window"`

	// Worker pool size for fitness evaluation. 0 or 1 means sequential.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Seed for the run's random source. 0 seeds from the clock.
	Seed int64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	TieBreak TieBreak `json:"tie_break" yaml:"tie_break" mapstructure:"tie_break"`
}

// DefaultEngineConfig returns a reasonable mid-size configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PopulationSize:    50,
		Generations:       30,
		MutationRate:      0.15,
		CrossoverRate:     0.8,
		EliteCount:        5,
		TournamentSize:    3,
		ConvergenceWindow: 8,
		Workers:           1,
		TieBreak:          TieBreakWeightedSum,
	}
}

// Validate rejects configurations the loop cannot run with
func (c EngineConfig) Validate() error {
	if c.PopulationSize < 2 {
		return fmt.Errorf("population_size must be at least 2, got %d", c.PopulationSize)
	}
	if c.Generations < 1 {
		return fmt.Errorf("generations must be at least 1, got %d", c.Generations)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be in [0, 1], got %f", c.MutationRate)
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return fmt.Errorf("crossover_rate must be in [0, 1], got %f", c.CrossoverRate)
	}
	if c.EliteCount < 0 || c.EliteCount >= c.PopulationSize {
		return fmt.Errorf("elite_count must be in [0, population_size), got %d", c.EliteCount)
	}
	if c.TournamentSize < 1 {
		return fmt.Errorf("tournament_size must be at least 1, got %d", c.TournamentSize)
	}
	if c.TieBreak != "" && c.TieBreak != TieBreakWeightedSum && c.TieBreak != TieBreakInsertionOrder {
		return fmt.Errorf("unknown tie_break: %s", c.TieBreak)
	}
	return nil
}

// Result is the final outcome of a completed run
type Result struct {
	Reason      TerminationReason  `json:"reason"`
	Generations int                `json:"generations"`
	EliteFront  []IndividualStats  `json:"elite_front"`
	History     []GenerationRecord `json:"history"`
	Elapsed     time.Duration      `json:"elapsed"`
}

// RunError is the fatal-failure outcome: the error that killed the run plus
// the elite front of the last generation that completed before it, so a
// caller still gets the best results found so far.
type RunError struct {
	Err          error
	LastGood     []IndividualStats
	AtGeneration int
}

func (e *RunError) Error() string {
	return fmt.Sprintf("optimization failed at generation %d: %v", e.AtGeneration, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Engine runs one optimization from start to termination. An Engine instance
// is single-use; all run state lives on it, never in package globals, so
// concurrent runs on separate instances do not interfere.
type Engine struct {
	cfg       EngineConfig
	monitor   *backtest.MonitorConfig
	ranges    []backtest.ParamRange
	evaluator *Evaluator
	observer  *Observer
	rng       *rand.Rand
	stop      chan struct{}

	// Called after every completed generation, from the engine goroutine
	onGeneration func(GenerationRecord)
}

// NewEngine wires an engine, its evaluator and its observer together
func NewEngine(cfg EngineConfig, monitor *backtest.MonitorConfig, objectives []ObjectiveSpec) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if err := monitor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if len(objectives) == 0 {
		objectives = DefaultObjectives()
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = TieBreakWeightedSum
	}

	evaluator, err := NewEvaluator(monitor, objectives, cfg.Workers)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		cfg:       cfg,
		monitor:   monitor,
		ranges:    monitor.ParamRanges(),
		evaluator: evaluator,
		observer:  NewObserver(evaluator.Objectives(), cfg.Generations),
		rng:       rand.New(rand.NewSource(seed)),
		stop:      make(chan struct{}),
	}, nil
}

// Observer exposes the run's progress tracker for polling
func (e *Engine) Observer() *Observer {
	return e.observer
}

// Evaluator exposes the fitness calculator, mainly so callers can swap the
// backtest function before Run.
func (e *Engine) Evaluator() *Evaluator {
	return e.evaluator
}

// OnGeneration registers a callback invoked after each completed generation
// with its summary record. Must be set before Run.
func (e *Engine) OnGeneration(fn func(GenerationRecord)) {
	e.onGeneration = fn
}

// Stop requests termination. The current generation finishes; the engine
// terminates at the next generation boundary. Safe to call more than once.
func (e *Engine) Stop() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	select {
	case <-e.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Run executes the generational loop to termination. On a generation-fatal
// error it returns a *RunError carrying the last completed generation's
// elite front.
func (e *Engine) Run(ctx context.Context, ticks []ledger.Tick) (*Result, error) {
	started := time.Now()
	objectives := e.evaluator.Objectives()

	log.Info().
		Str("monitor", e.monitor.Name).
		Int("population_size", e.cfg.PopulationSize).
		Int("generations", e.cfg.Generations).
		Int("workers", e.cfg.Workers).
		Int("genes", len(e.ranges)).
		Int("ticks", len(ticks)).
		Msg("Starting optimization run")

	e.observer.SetState(StateInitializing)
	population := InitPopulation(e.ranges, e.cfg.PopulationSize, e.rng)

	var lastElite []IndividualStats
	bestScore := math.Inf(-1)
	stale := 0
	reason := ReasonGenerationsExhausted
	completed := 0

	for gen := 0; gen < e.cfg.Generations; gen++ {
		e.observer.SetState(StateEvaluating)
		stats, err := e.evaluator.Evaluate(ctx, population, ticks)
		if err != nil {
			e.observer.SetState(StateTerminated)
			return nil, &RunError{Err: err, LastGood: lastElite, AtGeneration: gen}
		}

		e.observer.SetState(StateSelecting)
		elite := SelectElite(stats, e.cfg.EliteCount, objectives, e.cfg.TieBreak)
		e.observer.RecordGeneration(gen, stats, elite)
		lastElite = elite
		completed = gen + 1

		if e.onGeneration != nil {
			history := e.observer.History()
			e.onGeneration(history[len(history)-1])
		}

		genBest := generationBest(stats, objectives)
		log.Info().
			Int("generation", gen).
			Float64("best_score", genBest).
			Int("elite", len(elite)).
			Msg("Generation complete")

		// Convergence tracks the best weighted score across generations
		if genBest > bestScore {
			bestScore = genBest
			stale = 0
		} else {
			stale++
		}
		if e.cfg.ConvergenceWindow > 0 && stale >= e.cfg.ConvergenceWindow {
			reason = ReasonConverged
			break
		}

		if e.stopRequested(ctx) {
			reason = ReasonStopped
			break
		}
		if gen == e.cfg.Generations-1 {
			break
		}

		e.observer.SetState(StateReproducing)
		population = e.reproduce(stats, elite)
	}

	e.observer.SetState(StateTerminated)
	elapsed := time.Since(started)

	log.Info().
		Str("reason", string(reason)).
		Int("generations", completed).
		Dur("elapsed", elapsed).
		Msg("Optimization run terminated")

	return &Result{
		Reason:      reason,
		Generations: completed,
		EliteFront:  lastElite,
		History:     e.observer.History(),
		Elapsed:     elapsed,
	}, nil
}

// reproduce builds the next population: the elite carried forward unchanged,
// the remainder bred by tournament selection, crossover and mutation.
func (e *Engine) reproduce(stats []IndividualStats, elite []IndividualStats) Population {
	next := make(Population, 0, e.cfg.PopulationSize)
	for _, s := range elite {
		next = append(next, s.Individual.Clone())
	}

	ranks := rankOf(stats)
	objectives := e.evaluator.Objectives()

	for len(next) < e.cfg.PopulationSize {
		parent1 := stats[e.tournament(stats, ranks, objectives)].Individual
		parent2 := stats[e.tournament(stats, ranks, objectives)].Individual

		child1, child2 := parent1.Clone(), parent2.Clone()
		if e.rng.Float64() < e.cfg.CrossoverRate {
			child1, child2 = Crossover(parent1, parent2, e.ranges, e.rng)
		}

		next = append(next, Mutate(child1, e.ranges, e.cfg.MutationRate, e.rng))
		if len(next) < e.cfg.PopulationSize {
			next = append(next, Mutate(child2, e.ranges, e.cfg.MutationRate, e.rng))
		}
	}

	return next
}

// tournament picks the best of TournamentSize random entrants: lower Pareto
// rank wins, weighted score breaks ties within a rank.
func (e *Engine) tournament(stats []IndividualStats, ranks []int, objectives []ObjectiveSpec) int {
	best := e.rng.Intn(len(stats))
	for i := 1; i < e.cfg.TournamentSize; i++ {
		challenger := e.rng.Intn(len(stats))
		if ranks[challenger] < ranks[best] {
			best = challenger
			continue
		}
		if ranks[challenger] == ranks[best] &&
			stats[challenger].WeightedScore(objectives) > stats[best].WeightedScore(objectives) {
			best = challenger
		}
	}
	return best
}

// generationBest returns the best weighted score among valid records, or
// negative infinity when the whole generation failed.
func generationBest(stats []IndividualStats, objectives []ObjectiveSpec) float64 {
	best := math.Inf(-1)
	for _, s := range stats {
		if !s.Valid {
			continue
		}
		if score := s.WeightedScore(objectives); score > best {
			best = score
		}
	}
	return best
}
