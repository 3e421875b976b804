package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/stratevolve/stratevolve/internal/metrics"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// Binance caps klines responses at 1000 rows per request
const klinesPageLimit = 1000

// Circuit breaker settings for the Binance REST API
const (
	binanceMinRequests  = 5
	binanceFailureRatio = 0.6
	binanceOpenTimeout  = 30 * time.Second
)

// BinanceLoader fetches kline histories from the Binance REST API. Requests
// are rate limited and wrapped in a circuit breaker so a flapping API fails
// fast instead of hammering the endpoint.
type BinanceLoader struct {
	client  *binance.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewBinanceLoader creates a loader. Public klines need no credentials, so
// empty keys are fine. requestsPerMinute bounds the request rate.
func NewBinanceLoader(apiKey, secretKey string, testnet bool, requestsPerMinute int) *BinanceLoader {
	binance.UseTestnet = testnet

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "binance",
		Timeout: binanceOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= binanceMinRequests && ratio >= binanceFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})

	return &BinanceLoader{
		client:  binance.NewClient(apiKey, secretKey),
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 10),
		breaker: breaker,
	}
}

// Load pages through the klines endpoint until the requested window is
// covered and converts each kline into a tick.
func (l *BinanceLoader) Load(ctx context.Context, symbol, interval string, start, end time.Time) ([]ledger.Tick, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start %s is not before end %s", start, end)
	}

	var ticks []ledger.Tick
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := l.fetchPage(ctx, symbol, interval, cursor, endMs)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		for _, k := range page {
			tick, err := klineToTick(k, symbol)
			if err != nil {
				return nil, err
			}
			ticks = append(ticks, tick)
		}

		// Next page starts one interval past the last open time
		cursor = page[len(page)-1].OpenTime + 1
		if len(page) < klinesPageLimit {
			break
		}
	}

	if len(ticks) == 0 {
		return nil, fmt.Errorf("no klines returned for %s %s", symbol, interval)
	}

	metrics.TickLoads.WithLabelValues("binance").Inc()
	log.Info().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("ticks", len(ticks)).
		Time("start", start).
		Time("end", end).
		Msg("Loaded tick history from Binance")

	return ticks, nil
}

func (l *BinanceLoader) fetchPage(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]*binance.Kline, error) {
	result, err := l.breaker.Execute(func() (interface{}, error) {
		return l.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startMs).
			EndTime(endMs).
			Limit(klinesPageLimit).
			Do(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*binance.Kline), nil
}

// klineToTick converts one Binance kline, whose prices arrive as strings,
// into a tick.
func klineToTick(k *binance.Kline, symbol string) (ledger.Tick, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return ledger.Tick{}, fmt.Errorf("bad kline field %q: %w", field, err)
		}
		values[i] = v
	}

	return ledger.Tick{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
