package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/stratevolve/stratevolve/pkg/optimize"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig             `mapstructure:"app"`
	Optimizer  optimize.EngineConfig `mapstructure:"optimizer"`
	Market     MarketConfig          `mapstructure:"market"`
	Redis      RedisConfig           `mapstructure:"redis"`
	API        APIConfig             `mapstructure:"api"`
	Monitoring MonitoringConfig      `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// MarketConfig contains price-history loading settings
type MarketConfig struct {
	Source   string        `mapstructure:"source"` // "csv" or "binance"
	Symbol   string        `mapstructure:"symbol"`
	Interval string        `mapstructure:"interval"`
	CSVPath  string        `mapstructure:"csv_path"`
	Binance  BinanceConfig `mapstructure:"binance"`
	Cache    CacheConfig   `mapstructure:"cache"`
}

// BinanceConfig contains Binance REST client settings
type BinanceConfig struct {
	APIKey            string `mapstructure:"api_key"`
	SecretKey         string `mapstructure:"secret_key"`
	Testnet           bool   `mapstructure:"testnet"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// CacheConfig contains tick-cache settings. With UseRedis false the cache is
// in-process only.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	UseRedis bool          `mapstructure:"use_redis"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address of the Redis server
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("STRATEVOLVE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "StratEvolve")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Optimizer defaults
	def := optimize.DefaultEngineConfig()
	v.SetDefault("optimizer.population_size", def.PopulationSize)
	v.SetDefault("optimizer.generations", def.Generations)
	v.SetDefault("optimizer.mutation_rate", def.MutationRate)
	v.SetDefault("optimizer.crossover_rate", def.CrossoverRate)
	v.SetDefault("optimizer.elite_count", def.EliteCount)
	v.SetDefault("optimizer.tournament_size", def.TournamentSize)
	v.SetDefault("optimizer.convergence_window", def.ConvergenceWindow)
	v.SetDefault("optimizer.workers", def.Workers)
	v.SetDefault("optimizer.tie_break", string(def.TieBreak))

	// Market defaults
	v.SetDefault("market.source", "csv")
	v.SetDefault("market.symbol", "BTCUSDT")
	v.SetDefault("market.interval", "1h")
	v.SetDefault("market.binance.testnet", false)
	v.SetDefault("market.binance.requests_per_minute", 1200)
	v.SetDefault("market.cache.enabled", true)
	v.SetDefault("market.cache.use_redis", false)
	v.SetDefault("market.cache.ttl", "15m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)
	v.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
}

// Validate checks the configuration for startup-fatal problems
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}

	switch c.Market.Source {
	case "csv", "binance":
	default:
		return fmt.Errorf("market source must be csv or binance, got %q", c.Market.Source)
	}
	if c.Market.Symbol == "" {
		return fmt.Errorf("market symbol is required")
	}
	if c.Market.Binance.RequestsPerMinute <= 0 {
		return fmt.Errorf("binance requests_per_minute must be positive")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api port out of range: %d", c.API.Port)
	}
	if c.Market.Cache.UseRedis && c.Redis.Host == "" {
		return fmt.Errorf("redis cache enabled but redis host not set")
	}

	return nil
}
