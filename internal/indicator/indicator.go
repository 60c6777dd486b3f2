// Package indicator provides pure numeric calculators over bar windows.
// The backtest engine calls these directly for risk sizing and trend
// filtering; the fallback scorer builds its heuristics from them as well.
package indicator

import (
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// Default periods used by the engine.
const (
	DefaultRSIPeriod = 14
	DefaultATRPeriod = 14
	DefaultEMAPeriod = 20
)

// Closes extracts the close series from a bar window.
func Closes(bars []types.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return closes
}

func validatePeriod(period int) error {
	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return nil
}

func symbolOf(bars []types.Bar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}
