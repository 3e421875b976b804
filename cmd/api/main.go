// API server entrypoint: serves the optimization control surface
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stratevolve/stratevolve/internal/api"
	appconfig "github.com/stratevolve/stratevolve/internal/config"
	"github.com/stratevolve/stratevolve/internal/market"
	"github.com/stratevolve/stratevolve/internal/runs"
)

var configPath = flag.String("config", "", "Application config file (optional)")

func main() {
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	appconfig.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	log.Info().
		Str("name", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting API server")

	manager := runs.NewManager()

	server := api.NewServer(api.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
		Manager:        manager,
		Loader:         buildLoader(cfg),
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Let in-flight runs reach a generation boundary before the process exits
	manager.Shutdown(shutdownCtx)

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}

// buildLoader assembles the market loader chain from configuration. A nil
// return means start requests must carry ticks inline.
func buildLoader(cfg *appconfig.Config) market.Loader {
	var loader market.Loader
	switch cfg.Market.Source {
	case "csv":
		if cfg.Market.CSVPath == "" {
			log.Warn().Msg("No csv_path configured, runs must supply ticks inline")
			return nil
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
		return nil
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

	return loader
}
