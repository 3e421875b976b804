// Thread-safe progress tracking for a running optimization
package optimize

import (
	"sync"
	"time"
)

// ObjectiveSummary is the per-objective slice of one generation record
type ObjectiveSummary struct {
	Name    string  `json:"name"`
	Best    float64 `json:"best"`
	Average float64 `json:"average"`
}

// GenerationRecord is the published summary of one completed generation
type GenerationRecord struct {
	Generation int       `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`

	// Best weighted score across the generation, used for convergence
	BestWeightedScore float64 `json:"best_weighted_score"`

	Objectives []ObjectiveSummary `json:"objectives"`

	// Counts of evaluated vs sentinel records in this generation
	Evaluated int `json:"evaluated"`
	Failed    int `json:"failed"`
}

// Report is a point-in-time snapshot of run progress, safe to serve to
// pollers while the run is still executing.
type Report struct {
	State          EngineState        `json:"state"`
	Generation     int                `json:"generation"`
	MaxGenerations int                `json:"max_generations"`
	StartedAt      time.Time          `json:"started_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Best           *IndividualStats   `json:"best,omitempty"`
	History        []GenerationRecord `json:"history"`
}

// Observer collects generation summaries and the current elite front as the
// engine produces them. All accessors return copies; a poller can never see
// a half-written generation or mutate engine state through the result.
type Observer struct {
	mu sync.RWMutex

	objectives []ObjectiveSpec
	state      EngineState
	generation int
	maxGens    int
	startedAt  time.Time
	updatedAt  time.Time

	elite   []IndividualStats
	history []GenerationRecord
}

// NewObserver creates an observer for a run of at most maxGenerations
func NewObserver(objectives []ObjectiveSpec, maxGenerations int) *Observer {
	now := time.Now()
	return &Observer{
		objectives: objectives,
		state:      StateInitializing,
		maxGens:    maxGenerations,
		startedAt:  now,
		updatedAt:  now,
	}
}

// SetState publishes an engine state transition
func (o *Observer) SetState(state EngineState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
	o.updatedAt = time.Now()
}

// State returns the last published engine state
func (o *Observer) State() EngineState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// RecordGeneration publishes one completed generation: its summary record
// and the elite front selected from it.
func (o *Observer) RecordGeneration(generation int, stats []IndividualStats, elite []IndividualStats) {
	record := summarize(generation, stats, o.objectives)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation = generation
	o.elite = cloneStats(elite)
	o.history = append(o.history, record)
	o.updatedAt = time.Now()
}

// EliteFront returns a copy of the current elite front, best-first. Empty
// until the first generation completes.
func (o *Observer) EliteFront() []IndividualStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneStats(o.elite)
}

// History returns a copy of every generation record so far
func (o *Observer) History() []GenerationRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]GenerationRecord(nil), o.history...)
}

// LatestReport assembles the snapshot served to pollers
func (o *Observer) LatestReport() Report {
	o.mu.RLock()
	defer o.mu.RUnlock()

	report := Report{
		State:          o.state,
		Generation:     o.generation,
		MaxGenerations: o.maxGens,
		StartedAt:      o.startedAt,
		UpdatedAt:      o.updatedAt,
		History:        append([]GenerationRecord(nil), o.history...),
	}

	if len(o.elite) > 0 {
		best := o.elite[0]
		report.Best = &best
	}

	return report
}

// summarize reduces a generation's records to the published summary
func summarize(generation int, stats []IndividualStats, objectives []ObjectiveSpec) GenerationRecord {
	record := GenerationRecord{
		Generation: generation,
		Timestamp:  time.Now(),
		Objectives: make([]ObjectiveSummary, len(objectives)),
	}

	for i, obj := range objectives {
		record.Objectives[i] = ObjectiveSummary{Name: obj.Name}
	}

	first := true
	for _, s := range stats {
		if !s.Valid {
			record.Failed++
			continue
		}
		record.Evaluated++

		score := s.WeightedScore(objectives)
		if first || score > record.BestWeightedScore {
			record.BestWeightedScore = score
		}

		for i := range record.Objectives {
			if i >= len(s.Fitness) {
				continue
			}
			v := s.Fitness[i]
			record.Objectives[i].Average += v
			if first || v > record.Objectives[i].Best {
				record.Objectives[i].Best = v
			}
		}
		first = false
	}

	if record.Evaluated > 0 {
		for i := range record.Objectives {
			record.Objectives[i].Average /= float64(record.Evaluated)
		}
	}

	return record
}

func cloneStats(stats []IndividualStats) []IndividualStats {
	return append([]IndividualStats(nil), stats...)
}
