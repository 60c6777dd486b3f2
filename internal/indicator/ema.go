package indicator

import (
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// EMASeries calculates the exponential moving average series over values.
// The first period values seed a simple average; the series starts at
// index period-1 of the input and has len(values)-period+1 entries.
func EMASeries(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	if len(values) < period {
		return nil, errors.NewInsufficientDataErrorf(period, len(values), "",
			"EMA(%d) needs %d values, have %d", period, period, len(values))
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}

	seed /= float64(period)

	multiplier := 2.0 / (float64(period) + 1.0)
	series := make([]float64, 0, len(values)-period+1)
	series = append(series, seed)

	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		series = append(series, ema)
	}

	return series, nil
}

// EMA returns the latest exponential moving average of values.
func EMA(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}

	return series[len(series)-1], nil
}

// EMASlope returns the per-bar slope of the close EMA over the trailing
// lookback: (ema_now - ema_lookback_ago) / lookback. The engine uses the
// sign as a trend-alignment gate, so magnitude scaling does not matter as
// long as it is consistent.
func EMASlope(bars []types.Bar, period int, lookback int) (float64, error) {
	if lookback <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "lookback must be a positive integer, got %d", lookback)
	}

	series, err := EMASeries(Closes(bars), period)
	if err != nil {
		return 0, err
	}

	if len(series) < lookback+1 {
		return 0, errors.NewInsufficientDataErrorf(period+lookback, len(bars), symbolOf(bars),
			"EMA slope needs %d bars, have %d", period+lookback, len(bars))
	}

	latest := series[len(series)-1]
	earlier := series[len(series)-1-lookback]

	return (latest - earlier) / float64(lookback), nil
}
