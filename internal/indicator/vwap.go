package indicator

import (
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// VWAP calculates the session-cumulative volume-weighted average price
// over bars. Callers pass the bars of a single trading day from the
// session open up to and including the current bar.
func VWAP(bars []types.Bar) (float64, error) {
	if len(bars) == 0 {
		return 0, errors.NewInsufficientDataError(1, 0, "", "VWAP needs at least one bar")
	}

	var priceVolume, volume float64

	for _, bar := range bars {
		priceVolume += bar.TypicalPrice() * bar.Volume
		volume += bar.Volume
	}

	if volume == 0 {
		return 0, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"VWAP undefined for %s: zero cumulative volume", symbolOf(bars))
	}

	return priceVolume / volume, nil
}

// OpeningRange returns the high/low of the first n bars of a session.
// If fewer than n bars exist, the available bars are used.
func OpeningRange(bars []types.Bar, n int) (high float64, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.NewInsufficientDataError(1, 0, "", "opening range needs at least one bar")
	}

	if n > len(bars) {
		n = len(bars)
	}

	high = bars[0].High
	low = bars[0].Low

	for _, bar := range bars[1:n] {
		if bar.High > high {
			high = bar.High
		}

		if bar.Low < low {
			low = bar.Low
		}
	}

	return high, low, nil
}
