package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/trend"
)

// emaSignal leans long while price trades above its EMA and short below it.
// The distance is scaled so a 2% displacement saturates the signal.
func emaSignal(closes []float64, params Params) ([]float64, error) {
	period := params.Period("period", 20)
	if period < 1 {
		return nil, ErrInsufficientData
	}
	if len(closes) < period {
		warnShortHistory(KindEMA, period, len(closes))
		return nil, ErrInsufficientData
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	values, err := align(len(closes), collect(ema.Compute(sliceToChan(closes))))
	if err != nil {
		return nil, err
	}

	return priceVsAverage(closes, values), nil
}

// smaSignal is the simple-moving-average variant of emaSignal
func smaSignal(closes []float64, params Params) ([]float64, error) {
	period := params.Period("period", 20)
	if period < 1 {
		return nil, ErrInsufficientData
	}
	if len(closes) < period {
		warnShortHistory(KindSMA, period, len(closes))
		return nil, ErrInsufficientData
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	values, err := align(len(closes), collect(sma.Compute(sliceToChan(closes))))
	if err != nil {
		return nil, err
	}

	return priceVsAverage(closes, values), nil
}

// macdSignal leans with the MACD histogram: positive histogram is bullish.
// The histogram is scaled by price so the signal is comparable across
// symbols; a displacement of 0.5% of price saturates it.
func macdSignal(closes []float64, params Params) ([]float64, error) {
	fast := params.Period("fast_period", 12)
	slow := params.Period("slow_period", 26)
	signalPeriod := params.Period("signal_period", 9)

	if fast < 1 || slow < 1 || signalPeriod < 1 || fast >= slow {
		return nil, ErrInsufficientData
	}
	if len(closes) < slow+signalPeriod {
		warnShortHistory(KindMACD, slow+signalPeriod, len(closes))
		return nil, ErrInsufficientData
	}

	macd := trend.NewMacdWithPeriod[float64](fast, slow, signalPeriod)
	macdChan, signalChan := macd.Compute(sliceToChan(closes))

	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		s, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, s)
	}

	histogram := make([]float64, len(macdValues))
	for i := range macdValues {
		histogram[i] = macdValues[i] - signalValues[i]
	}

	aligned, err := align(len(closes), histogram)
	if err != nil {
		return nil, err
	}

	signals := make([]float64, len(aligned))
	for i, h := range aligned {
		if math.IsNaN(h) || closes[i] == 0 {
			signals[i] = math.NaN()
			continue
		}
		signals[i] = clamp(h/closes[i]/0.005, -1, 1)
	}

	return signals, nil
}

// priceVsAverage converts price-vs-moving-average displacement into a
// normalized signal series
func priceVsAverage(closes, average []float64) []float64 {
	signals := make([]float64, len(closes))
	for i := range closes {
		avg := average[i]
		if math.IsNaN(avg) || avg == 0 {
			signals[i] = math.NaN()
			continue
		}
		signals[i] = clamp((closes[i]-avg)/avg/0.02, -1, 1)
	}
	return signals
}
