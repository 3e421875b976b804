// Package market loads tick histories for optimization runs: from CSV files
// or the Binance klines API, with optional in-process or Redis caching. All
// loading happens before a run starts; nothing here is called during
// evaluation.
package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stratevolve/stratevolve/internal/metrics"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// Loader fetches the tick history for one symbol and interval
type Loader interface {
	Load(ctx context.Context, symbol, interval string, start, end time.Time) ([]ledger.Tick, error)
}

// CSVLoader reads tick histories from a local CSV file with the column
// layout: timestamp,open,high,low,close,volume. Timestamps are RFC3339 or
// Unix milliseconds. A header row is skipped if present.
type CSVLoader struct {
	Path string
}

// NewCSVLoader creates a loader for one CSV file
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{Path: path}
}

// Load reads every row inside [start, end]. The interval argument is
// ignored; the file's own sampling is used as-is.
func (l *CSVLoader) Load(ctx context.Context, symbol, interval string, start, end time.Time) ([]ledger.Tick, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tick file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 6

	var ticks []ledger.Tick
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tick file at line %d: %w", line+1, err)
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}

		tick, err := parseCSVRecord(record, symbol)
		if err != nil {
			return nil, fmt.Errorf("bad tick at line %d: %w", line, err)
		}
		if !start.IsZero() && tick.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && tick.Timestamp.After(end) {
			continue
		}
		ticks = append(ticks, tick)
	}

	if len(ticks) == 0 {
		return nil, fmt.Errorf("tick file %s contains no usable rows", l.Path)
	}

	metrics.TickLoads.WithLabelValues("csv").Inc()
	log.Info().
		Str("path", l.Path).
		Str("symbol", symbol).
		Int("ticks", len(ticks)).
		Msg("Loaded tick history from CSV")

	return ticks, nil
}

func isHeader(record []string) bool {
	_, err := strconv.ParseFloat(record[1], 64)
	return err != nil
}

func parseCSVRecord(record []string, symbol string) (ledger.Tick, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return ledger.Tick{}, err
	}

	values := make([]float64, 5)
	for i, field := range record[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return ledger.Tick{}, fmt.Errorf("bad numeric field %q: %w", field, err)
		}
		values[i] = v
	}

	return ledger.Tick{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

func parseTimestamp(field string) (time.Time, error) {
	if ms, err := strconv.ParseInt(field, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, field)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", field, err)
	}
	return ts.UTC(), nil
}
