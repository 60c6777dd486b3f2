package indicator

import (
	"math"

	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// TrueRange returns the true range of bar relative to the previous close.
func TrueRange(bar types.Bar, prevClose float64) float64 {
	return math.Max(
		math.Max(
			bar.High-bar.Low,
			math.Abs(bar.High-prevClose),
		),
		math.Abs(bar.Low-prevClose),
	)
}

// ATR calculates the Average True Range over the trailing window using
// Wilder's smoothing. Requires at least period+1 bars so every true range
// has a previous close.
func ATR(bars []types.Bar, period int) (float64, error) {
	if err := validatePeriod(period); err != nil {
		return 0, err
	}

	if len(bars) < period+1 {
		return 0, errors.NewInsufficientDataErrorf(period+1, len(bars), symbolOf(bars),
			"ATR(%d) needs %d bars, have %d", period, period+1, len(bars))
	}

	trueRanges := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trueRanges = append(trueRanges, TrueRange(bars[i], bars[i-1].Close))
	}

	// Seed with a simple average, then apply Wilder's smoothing
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}

	atr /= float64(period)

	for i := period; i < len(trueRanges); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return atr, nil
}
