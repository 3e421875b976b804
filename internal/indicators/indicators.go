// Package indicators computes normalized trading signals from close-price
// series. Every indicator is mapped onto [-1, 1], where 1 leans fully long
// and -1 fully short; warm-up samples that the underlying indicator cannot
// produce are NaN. All series returned are aligned index for index with the
// input closes.
package indicators

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// Kind identifies a supported indicator
type Kind string

const (
	KindRSI       Kind = "rsi"
	KindEMA       Kind = "ema"
	KindSMA       Kind = "sma"
	KindMACD      Kind = "macd"
	KindBollinger Kind = "bollinger"
)

// ErrInsufficientData is returned when the close history is too short for
// the indicator's parameters
var ErrInsufficientData = fmt.Errorf("insufficient data for indicator")

// Params carries indicator parameter values keyed by name
type Params map[string]float64

// Period reads an integer period parameter, rounding the stored value and
// falling back to def when absent
func (p Params) Period(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	return int(math.Round(v))
}

type signalFunc func(closes []float64, params Params) ([]float64, error)

var signalRegistry = map[Kind]signalFunc{
	KindRSI:       rsiSignal,
	KindEMA:       emaSignal,
	KindSMA:       smaSignal,
	KindMACD:      macdSignal,
	KindBollinger: bollingerSignal,
}

// KnownKinds returns every supported indicator kind
func KnownKinds() []Kind {
	return []Kind{KindRSI, KindEMA, KindSMA, KindMACD, KindBollinger}
}

// ValidKind reports whether the kind is supported
func ValidKind(kind Kind) bool {
	_, ok := signalRegistry[kind]
	return ok
}

// Signal computes the normalized signal series for one indicator. The result
// has exactly len(closes) entries; positions the indicator cannot score are
// NaN.
func Signal(kind Kind, closes []float64, params Params) ([]float64, error) {
	fn, ok := signalRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown indicator kind: %s", kind)
	}
	return fn(closes, params)
}

// sliceToChan feeds a slice through a channel, the input form the indicator
// library computes on
func sliceToChan(values []float64) <-chan float64 {
	ch := make(chan float64)
	go func() {
		defer close(ch)
		for _, v := range values {
			ch <- v
		}
	}()
	return ch
}

// collect drains an indicator output channel into a slice
func collect(ch <-chan float64) []float64 {
	var values []float64
	for v := range ch {
		values = append(values, v)
	}
	return values
}

// align left-pads an indicator output with NaNs so it lines up index for
// index with an input of length n. Indicator outputs drop their warm-up
// window, so they are shorter than the input.
func align(n int, values []float64) ([]float64, error) {
	if len(values) > n {
		return nil, fmt.Errorf("indicator produced %d values for %d inputs", len(values), n)
	}

	aligned := make([]float64, n)
	pad := n - len(values)
	for i := 0; i < pad; i++ {
		aligned[i] = math.NaN()
	}
	copy(aligned[pad:], values)
	return aligned, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func warnShortHistory(kind Kind, needed, have int) {
	log.Warn().
		Str("indicator", string(kind)).
		Int("needed", needed).
		Int("have", have).
		Msg("Close history too short for indicator")
}
