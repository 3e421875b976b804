package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/volatility"
)

// bollingerSignal leans long near the lower band and short near the upper
// band, using %B position inside the bands. %B 0.5 (mid band) is neutral.
func bollingerSignal(closes []float64, params Params) ([]float64, error) {
	period := params.Period("period", 20)
	if period < 2 {
		return nil, ErrInsufficientData
	}
	if len(closes) < period {
		warnShortHistory(KindBollinger, period, len(closes))
		return nil, ErrInsufficientData
	}

	// Compute returns the bands in upper, middle, lower order
	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	upperChan, middleChan, lowerChan := bb.Compute(sliceToChan(closes))

	var lower, upper []float64
	for {
		u, uok := <-upperChan
		_, mok := <-middleChan
		l, lok := <-lowerChan
		if !uok || !mok || !lok {
			break
		}
		upper = append(upper, u)
		lower = append(lower, l)
	}

	alignedLower, err := align(len(closes), lower)
	if err != nil {
		return nil, err
	}
	alignedUpper, err := align(len(closes), upper)
	if err != nil {
		return nil, err
	}

	signals := make([]float64, len(closes))
	for i := range closes {
		lo, hi := alignedLower[i], alignedUpper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || hi == lo {
			// Degenerate bands (flat prices) carry no information
			signals[i] = math.NaN()
			continue
		}
		percentB := (closes[i] - lo) / (hi - lo)
		signals[i] = clamp(1.0-2.0*percentB, -1, 1)
	}

	return signals, nil
}
