package signal

import (
	"math"

	"github.com/quantframe-labs/intrascan/internal/indicator"
	"github.com/quantframe-labs/intrascan/internal/types"
)

// Component weights of the fallback heuristic.
const (
	fallbackRSIWeight    = 0.50
	fallbackTrendWeight  = 0.30
	fallbackVolumeWeight = 0.20

	// price deviation from SMA20 that saturates the trend component
	trendSaturationPct = 0.02

	fallbackSMAPeriod = 20
	fallbackVolPeriod = 20
)

// FallbackScorer is the deterministic secondary scorer built from
// RSI, price-vs-SMA and volume-surge heuristics. Its Score method never
// returns an error: short windows degrade to the neutral score.
type FallbackScorer struct{}

// NewFallbackScorer creates the fallback scorer.
func NewFallbackScorer() *FallbackScorer {
	return &FallbackScorer{}
}

// Name implements Scorer.
func (f *FallbackScorer) Name() string {
	return "rsi_sma_volume_fallback"
}

// Score implements Scorer. Positive values read overbought (short),
// negative oversold (long), matching the primary scorer's convention.
func (f *FallbackScorer) Score(window []types.Bar, currentPrice float64, symbol string) (Score, error) {
	rsiValue, err := indicator.RSI(window, indicator.DefaultRSIPeriod)
	if err != nil {
		return Neutral(), nil
	}

	smaValue, err := indicator.SMA(indicator.Closes(window), fallbackSMAPeriod)
	if err != nil || smaValue == 0 {
		return Neutral(), nil
	}

	avgVolume, err := indicator.AvgVolume(window, fallbackVolPeriod)
	if err != nil {
		return Neutral(), nil
	}

	// RSI centered on 50 and scaled to [-1, 1]
	rsiComponent := (rsiValue - 50) / 50

	// price deviation from SMA20, saturating at +/-2%
	trendComponent := clamp((currentPrice-smaValue)/smaValue/trendSaturationPct, -1, 1)

	// volume surge amplifies the trend reading; it carries no sign of
	// its own
	volumeComponent := 0.0
	if avgVolume > 0 {
		surge := clamp(window[len(window)-1].Volume/avgVolume-1, 0, 1)
		volumeComponent = surge * sign(trendComponent)
	}

	value := fallbackRSIWeight*rsiComponent +
		fallbackTrendWeight*trendComponent +
		fallbackVolumeWeight*volumeComponent

	value = clamp(value, -1, 1)

	confidence := math.Min(100, 40+60*math.Abs(value))

	return Score{
		Value:      value,
		Confidence: confidence,
		RSI:        rsiValue,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
