// Package signal defines the scoring contract between the backtest engine
// and whatever produces directional calls, plus the deterministic fallback
// the engine degrades to when the primary scorer fails.
package signal

import (
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// Score is a single directional reading for one bar.
// Value is in [-1, +1]: positive readings are overbought (short calls),
// negative readings are oversold (long calls). Confidence is in [0, 100].
type Score struct {
	Value      float64 `yaml:"value" json:"value"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	RSI        float64 `yaml:"rsi" json:"rsi"`
}

// Scorer produces a Score from a rolling bar window. Implementations may
// fail; the engine never calls a Scorer without a fallback behind it.
type Scorer interface {
	Name() string
	Score(window []types.Bar, currentPrice float64, symbol string) (Score, error)
}

// Validate checks the score is within its documented bounds. An
// out-of-bounds score from a primary scorer is treated the same as an
// error from it.
func (s Score) Validate() error {
	if s.Value < -1 || s.Value > 1 {
		return errors.Newf(errors.ErrCodeSignalMalformed, "score %.4f outside [-1, 1]", s.Value)
	}

	if s.Confidence < 0 || s.Confidence > 100 {
		return errors.Newf(errors.ErrCodeSignalMalformed, "confidence %.2f outside [0, 100]", s.Confidence)
	}

	return nil
}

// ScoreOrFallback invokes primary and returns its score when it is both
// error-free and well-formed. Otherwise it returns the fallback's score
// together with the primary's error so the caller can log the degradation.
// The returned score is always usable; a panic inside the primary is
// converted to an error rather than propagated.
func ScoreOrFallback(primary Scorer, fallback Scorer, window []types.Bar, currentPrice float64, symbol string) (score Score, primaryErr error) {
	if primary != nil {
		score, primaryErr = invoke(primary, window, currentPrice, symbol)
		if primaryErr == nil {
			if primaryErr = score.Validate(); primaryErr == nil {
				return score, nil
			}
		}
	}

	fallbackScore, err := fallback.Score(window, currentPrice, symbol)
	if err != nil {
		// the fallback contract forbids this; degrade to neutral anyway
		fallbackScore = Neutral()
	}

	return fallbackScore, primaryErr
}

func invoke(scorer Scorer, window []types.Bar, currentPrice float64, symbol string) (score Score, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeSignalFailed, "scorer %s panicked: %v", scorer.Name(), r)
		}
	}()

	return scorer.Score(window, currentPrice, symbol)
}

// Neutral is the degraded no-opinion score: it can never clear the entry
// gates.
func Neutral() Score {
	return Score{Value: 0, Confidence: 40, RSI: 50}
}
