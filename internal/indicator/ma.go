package indicator

import (
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// SMA calculates the simple moving average of the trailing period values.
func SMA(values []float64, period int) (float64, error) {
	if err := validatePeriod(period); err != nil {
		return 0, err
	}

	if len(values) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(values), "",
			"SMA(%d) needs %d values, have %d", period, period, len(values))
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}

	return sum / float64(period), nil
}

// AvgVolume calculates the average volume of the trailing period bars,
// excluding the final bar. The engine compares the current bar's volume
// against this trailing average for its liquidity gate.
func AvgVolume(bars []types.Bar, period int) (float64, error) {
	if err := validatePeriod(period); err != nil {
		return 0, err
	}

	if len(bars) < period+1 {
		return 0, errors.NewInsufficientDataErrorf(period+1, len(bars), symbolOf(bars),
			"trailing volume needs %d bars, have %d", period+1, len(bars))
	}

	trailing := bars[len(bars)-period-1 : len(bars)-1]

	sum := 0.0
	for _, bar := range trailing {
		sum += bar.Volume
	}

	return sum / float64(period), nil
}
