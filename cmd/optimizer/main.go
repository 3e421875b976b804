// Optimizer CLI
// Evolves trading-strategy parameters against historical data and prints the
// elite front of the final generation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appconfig "github.com/stratevolve/stratevolve/internal/config"
	"github.com/stratevolve/stratevolve/internal/market"
	"github.com/stratevolve/stratevolve/pkg/backtest"
	"github.com/stratevolve/stratevolve/pkg/ledger"
	"github.com/stratevolve/stratevolve/pkg/optimize"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	configPath  = flag.String("config", "", "Application config file (optional)")
	monitorPath = flag.String("monitor", "", "Monitor configuration YAML (required)")

	// Data selection; overrides the config file
	dataFile  = flag.String("data", "", "CSV tick file (overrides config source)")
	symbol    = flag.String("symbol", "", "Symbol, e.g. BTCUSDT")
	interval  = flag.String("interval", "", "Kline interval, e.g. 1h")
	startDate = flag.String("start", "", "Start date (YYYY-MM-DD)")
	endDate   = flag.String("end", "", "End date (YYYY-MM-DD)")

	// Engine overrides; zero keeps the config value
	generations = flag.Int("generations", 0, "Number of generations")
	population  = flag.Int("population", 0, "Population size")
	workers     = flag.Int("workers", 0, "Evaluation worker count")
	seed        = flag.Int64("seed", 0, "Random seed (0 seeds from the clock)")

	outputFile = flag.String("output", "", "Output file for the report (optional)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *monitorPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -monitor flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyOverrides(cfg)

	monitor, err := backtest.LoadMonitorConfig(*monitorPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load monitor configuration")
	}

	ctx := context.Background()
	ticks, err := loadTicks(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load price history")
	}

	engine, err := optimize.NewEngine(cfg.Optimizer, monitor, optimize.DefaultObjectives())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	// A first interrupt stops at the generation boundary; a second kills
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Interrupt received, stopping at generation boundary")
		engine.Stop()
		<-sigChan
		os.Exit(1)
	}()

	result, err := engine.Run(ctx, ticks)
	if err != nil {
		log.Fatal().Err(err).Msg("Optimization failed")
	}

	report := optimize.GenerateReport(result, engine.Evaluator().Objectives())
	fmt.Println(report)

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write report")
		}
		log.Info().Str("path", *outputFile).Msg("Report written")
	}
}

// applyOverrides folds CLI flags into the loaded configuration
func applyOverrides(cfg *appconfig.Config) {
	if *dataFile != "" {
		cfg.Market.Source = "csv"
		cfg.Market.CSVPath = *dataFile
	}
	if *symbol != "" {
		cfg.Market.Symbol = *symbol
	}
	if *interval != "" {
		cfg.Market.Interval = *interval
	}
	if *generations > 0 {
		cfg.Optimizer.Generations = *generations
	}
	if *population > 0 {
		cfg.Optimizer.PopulationSize = *population
	}
	if *workers > 0 {
		cfg.Optimizer.Workers = *workers
	}
	if *seed != 0 {
		cfg.Optimizer.Seed = *seed
	}
}

// loadTicks builds the configured loader chain and fetches the history
func loadTicks(ctx context.Context, cfg *appconfig.Config) ([]ledger.Tick, error) {
	var loader market.Loader
	switch cfg.Market.Source {
	case "csv":
		if cfg.Market.CSVPath == "" {
			return nil, fmt.Errorf("csv source needs -data or market.csv_path")
		}
		loader = market.NewCSVLoader(cfg.Market.CSVPath)
	case "binance":
		loader = market.NewBinanceLoader(
			cfg.Market.Binance.APIKey,
			cfg.Market.Binance.SecretKey,
			cfg.Market.Binance.Testnet,
			cfg.Market.Binance.RequestsPerMinute,
		)
	default:
		return nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
	}

	if cfg.Market.Cache.Enabled {
		var cache market.TickCache
		if cfg.Market.Cache.UseRedis {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr(),
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			cache = market.NewRedisTickCache(client, cfg.Market.Cache.TTL)
		} else {
			cache = market.NewMemoryCache(cfg.Market.Cache.TTL)
		}
		loader = market.NewCachedLoader(loader, cache)
	}

	start, end, err := parseWindow()
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, cfg.Market.Symbol, cfg.Market.Interval, start, end)
}

func parseWindow() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if *startDate != "" {
		start, err = time.Parse("2006-01-02", *startDate)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date (use YYYY-MM-DD): %w", err)
		}
	}
	if *endDate != "" {
		end, err = time.Parse("2006-01-02", *endDate)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date (use YYYY-MM-DD): %w", err)
		}
	}
	return start, end, nil
}
