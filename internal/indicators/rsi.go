package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/momentum"
)

// rsiSignal maps RSI onto [-1, 1]: oversold readings lean long, overbought
// readings lean short. RSI 50 is neutral.
func rsiSignal(closes []float64, params Params) ([]float64, error) {
	period := params.Period("period", 14)
	if period < 1 {
		return nil, ErrInsufficientData
	}
	if len(closes) <= period {
		warnShortHistory(KindRSI, period+1, len(closes))
		return nil, ErrInsufficientData
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	values, err := align(len(closes), collect(rsi.Compute(sliceToChan(closes))))
	if err != nil {
		return nil, err
	}

	signals := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			signals[i] = math.NaN()
			continue
		}
		signals[i] = clamp((50.0-v)/50.0, -1, 1)
	}

	return signals, nil
}
