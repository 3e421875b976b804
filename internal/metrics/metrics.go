package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Optimization Run Metrics
var (
	// Active optimization runs
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stratevolve_active_runs",
		Help: "Number of currently executing optimization runs",
	})

	// Total runs started
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratevolve_runs_started_total",
		Help: "Total number of optimization runs started",
	})

	// Runs by terminal outcome
	RunsTerminated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratevolve_runs_terminated_total",
		Help: "Total number of terminated runs by reason",
	}, []string{"reason"})

	// Generations completed across all runs
	GenerationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratevolve_generations_completed_total",
		Help: "Total number of completed generations",
	})

	// Individual evaluations
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratevolve_evaluations_total",
		Help: "Total number of individual fitness evaluations",
	})

	// Failed evaluations replaced by sentinel records
	EvaluationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratevolve_evaluation_failures_total",
		Help: "Total number of failed evaluations substituted with sentinels",
	})

	// Generation wall time
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stratevolve_generation_duration_seconds",
		Help:    "Wall time of one generation including selection",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// Best weighted score seen per run
	BestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stratevolve_best_weighted_score",
		Help: "Best weighted fitness score of the latest generation by run",
	}, []string{"run_id"})
)

// Market Data Metrics
var (
	// Tick history loads
	TickLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratevolve_tick_loads_total",
		Help: "Total tick history loads by source",
	}, []string{"source"})

	// Tick cache hits and misses
	TickCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratevolve_tick_cache_hits_total",
		Help: "Total tick cache hits",
	})

	TickCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratevolve_tick_cache_misses_total",
		Help: "Total tick cache misses",
	})
)

// API Metrics
var (
	// HTTP requests by route and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratevolve_http_requests_total",
		Help: "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	// HTTP request latency
	HTTPDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stratevolve_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)
