// Package runs owns the lifecycle of optimization runs: starting a run on
// its own goroutine, stopping it at a generation boundary and serving
// progress snapshots to pollers. Each run's state belongs to its own engine
// instance, so concurrent runs never interfere.
package runs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratevolve/stratevolve/internal/config"
	"github.com/stratevolve/stratevolve/internal/metrics"
	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
	"github.com/stratevolve/stratevolve/pkg/optimize"
)

// ErrRunNotFound is returned for handles the manager does not know
var ErrRunNotFound = fmt.Errorf("run not found")

// Status is the poll response for one run: the live progress report plus
// the terminal outcome once the run has finished.
type Status struct {
	ID       string           `json:"id"`
	Monitor  string           `json:"monitor"`
	Done     bool             `json:"done"`
	Error    string           `json:"error,omitempty"`
	Report   optimize.Report  `json:"report"`
	Result   *optimize.Result `json:"result,omitempty"`
	Started  time.Time        `json:"started"`
	Finished *time.Time       `json:"finished,omitempty"`
}

// run is the manager's record of one optimization
type run struct {
	id      string
	monitor string
	engine  *optimize.Engine
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	mu       sync.Mutex
	result   *optimize.Result
	err      error
	finished time.Time
}

// Manager starts, stops and tracks optimization runs
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*run
}

// NewManager creates an empty run manager
func NewManager() *Manager {
	return &Manager{runs: make(map[string]*run)}
}

// Start validates the request, spins the run up on its own goroutine and
// returns its handle immediately.
func (m *Manager) Start(cfg optimize.EngineConfig, monitor *backtest.MonitorConfig, objectives []optimize.ObjectiveSpec, ticks []ledger.Tick) (string, error) {
	if len(ticks) == 0 {
		return "", fmt.Errorf("no price history supplied")
	}

	engine, err := optimize.NewEngine(cfg, monitor, objectives)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	logger := config.NewRunLogger(id)

	engine.OnGeneration(func(rec optimize.GenerationRecord) {
		metrics.GenerationsCompleted.Inc()
		metrics.EvaluationsTotal.Add(float64(rec.Evaluated + rec.Failed))
		metrics.EvaluationFailures.Add(float64(rec.Failed))
		metrics.BestScore.WithLabelValues(id).Set(rec.BestWeightedScore)
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:      id,
		monitor: monitor.Name,
		engine:  engine,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	m.mu.Lock()
	m.runs[id] = r
	m.mu.Unlock()

	metrics.RunsStarted.Inc()
	metrics.ActiveRuns.Inc()
	logger.Info().
		Str("monitor", monitor.Name).
		Int("ticks", len(ticks)).
		Msg("Run started")

	go func() {
		defer metrics.ActiveRuns.Dec()
		defer close(r.done)

		started := time.Now()
		result, err := engine.Run(ctx, ticks)

		r.mu.Lock()
		r.result = result
		r.err = err
		r.finished = time.Now()
		r.mu.Unlock()

		if err != nil {
			metrics.RunsTerminated.WithLabelValues("fatal_error").Inc()
			logger.Error().Err(err).Msg("Run failed")
			return
		}

		metrics.RunsTerminated.WithLabelValues(string(result.Reason)).Inc()
		metrics.GenerationDuration.Observe(time.Since(started).Seconds() / float64(max(result.Generations, 1)))
		logger.Info().
			Str("reason", string(result.Reason)).
			Int("generations", result.Generations).
			Msg("Run finished")
	}()

	return id, nil
}

// Stop requests termination of a run at its next generation boundary
func (m *Manager) Stop(id string) error {
	r, err := m.get(id)
	if err != nil {
		return err
	}
	r.engine.Stop()
	return nil
}

// Poll returns the current status of a run
func (m *Manager) Poll(id string) (Status, error) {
	r, err := m.get(id)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		ID:      r.id,
		Monitor: r.monitor,
		Report:  r.engine.Observer().LatestReport(),
		Started: r.started,
	}

	select {
	case <-r.done:
		status.Done = true
		r.mu.Lock()
		if r.err != nil {
			status.Error = r.err.Error()
		}
		status.Result = r.result
		finished := r.finished
		r.mu.Unlock()
		status.Finished = &finished
	default:
	}

	return status, nil
}

// Wait blocks until the run terminates or the context is done
func (m *Manager) Wait(ctx context.Context, id string) error {
	r, err := m.get(id)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Remove forgets a finished run. Running runs are stopped first and removal
// fails until they terminate.
func (m *Manager) Remove(id string) error {
	r, err := m.get(id)
	if err != nil {
		return err
	}

	select {
	case <-r.done:
	default:
		r.engine.Stop()
		r.cancel()
		return fmt.Errorf("run %s is still executing", id)
	}

	m.mu.Lock()
	delete(m.runs, id)
	m.mu.Unlock()
	metrics.BestScore.DeleteLabelValues(id)
	return nil
}

// List returns the status of every known run
func (m *Manager) List() []Status {
	m.mu.RLock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(ids))
	for _, id := range ids {
		if status, err := m.Poll(id); err == nil {
			statuses = append(statuses, status)
		}
	}
	return statuses
}

// Shutdown stops every run and waits for them to finish
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	active := make([]*run, 0, len(m.runs))
	for _, r := range m.runs {
		active = append(active, r)
	}
	m.mu.RUnlock()

	for _, r := range active {
		r.engine.Stop()
	}
	for _, r := range active {
		select {
		case <-r.done:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) get(id string) (*run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}
