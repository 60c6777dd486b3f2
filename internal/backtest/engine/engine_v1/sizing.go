package engine

import (
	"math"

	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// SizePosition returns the number of shares to trade for a new position.
//
// The share count risks at most riskPerTrade of capital against the
// stop distance, and the resulting notional is further capped at
// maxNotionalPct of capital. Returns a typed error when the stop
// distance or the capital makes sizing degenerate (zero shares).
func SizePosition(capital, entryPrice, stopLoss, riskPerTrade, maxNotionalPct float64) (int, error) {
	riskPerShare := math.Abs(entryPrice - stopLoss)
	if riskPerShare <= 0 {
		return 0, errors.New(errors.ErrCodeDegenerateSizing, "stop distance is zero")
	}

	shares := int(math.Floor(capital * riskPerTrade / riskPerShare))

	maxShares := int(math.Floor(capital * maxNotionalPct / entryPrice))
	if shares > maxShares {
		shares = maxShares
	}

	if shares <= 0 {
		return 0, errors.Newf(errors.ErrCodeDegenerateSizing,
			"capital %.2f cannot fund one share at %.2f with stop distance %.2f",
			capital, entryPrice, riskPerShare)
	}

	return shares, nil
}
