package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

// barsFromCloses builds 5-minute bars around a close series with a fixed
// 2-point high/low band and unit volume.
func barsFromCloses(closes []float64) []types.Bar {
	start := time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Symbol: "TCS",
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}

	return bars
}

func ramp(start, step float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + step*float64(i)
	}

	return values
}

func (suite *IndicatorTestSuite) TestRSIExtremes() {
	up, err := RSI(barsFromCloses(ramp(100, 1, 20)), DefaultRSIPeriod)
	suite.Require().NoError(err)
	suite.InDelta(100, up, 1e-9)

	down, err := RSI(barsFromCloses(ramp(100, -1, 20)), DefaultRSIPeriod)
	suite.Require().NoError(err)
	suite.InDelta(0, down, 1e-9)
}

func (suite *IndicatorTestSuite) TestRSIOrdering() {
	mixed := []float64{100, 101, 100.5, 102, 101.2, 103, 102.1, 104, 103.4, 105, 104.2, 106, 105.5, 107, 106.3, 108}

	value, err := RSI(barsFromCloses(mixed), DefaultRSIPeriod)
	suite.Require().NoError(err)
	suite.Greater(value, 50.0)
	suite.Less(value, 100.0)
}

func (suite *IndicatorTestSuite) TestRSIInsufficientData() {
	_, err := RSI(barsFromCloses(ramp(100, 1, 10)), DefaultRSIPeriod)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestRSIInvalidPeriod() {
	_, err := RSI(barsFromCloses(ramp(100, 1, 20)), 0)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *IndicatorTestSuite) TestATRConstantRange() {
	// flat closes with a constant 2-point bar range: every TR is 2
	value, err := ATR(barsFromCloses(ramp(100, 0, 20)), DefaultATRPeriod)
	suite.Require().NoError(err)
	suite.InDelta(2.0, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestATRInsufficientData() {
	_, err := ATR(barsFromCloses(ramp(100, 0, 14)), DefaultATRPeriod)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestTrueRangeGaps() {
	bar := types.Bar{High: 105, Low: 103, Close: 104}

	// gap up: prev close far below the bar
	suite.InDelta(5.0, TrueRange(bar, 100), 1e-9)
	// gap down: prev close far above the bar
	suite.InDelta(7.0, TrueRange(bar, 110), 1e-9)
	// no gap: plain high-low range
	suite.InDelta(2.0, TrueRange(bar, 104), 1e-9)
}

func (suite *IndicatorTestSuite) TestEMAConstantSeries() {
	value, err := EMA(ramp(50, 0, 30), DefaultEMAPeriod)
	suite.Require().NoError(err)
	suite.InDelta(50, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestEMASeriesLength() {
	series, err := EMASeries(ramp(100, 1, 30), DefaultEMAPeriod)
	suite.Require().NoError(err)
	suite.Len(series, 11)

	// EMA lags a rising series
	suite.Less(series[len(series)-1], 129.0)
	suite.Greater(series[len(series)-1], series[0])
}

func (suite *IndicatorTestSuite) TestEMASlopeSign() {
	up, err := EMASlope(barsFromCloses(ramp(100, 1, 30)), DefaultEMAPeriod, 5)
	suite.Require().NoError(err)
	suite.Greater(up, 0.0)

	down, err := EMASlope(barsFromCloses(ramp(100, -1, 30)), DefaultEMAPeriod, 5)
	suite.Require().NoError(err)
	suite.Less(down, 0.0)

	flat, err := EMASlope(barsFromCloses(ramp(100, 0, 30)), DefaultEMAPeriod, 5)
	suite.Require().NoError(err)
	suite.InDelta(0.0, flat, 1e-9)
}

func (suite *IndicatorTestSuite) TestEMASlopeInsufficientData() {
	// enough bars for the EMA seed but not for the lookback
	_, err := EMASlope(barsFromCloses(ramp(100, 1, 22)), DefaultEMAPeriod, 5)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestSMA() {
	value, err := SMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	suite.Require().NoError(err)
	suite.InDelta(5.0, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestAvgVolumeExcludesCurrentBar() {
	bars := barsFromCloses(ramp(100, 0, 22))
	// spike the final bar; the trailing average must not include it
	bars[len(bars)-1].Volume = 50000

	value, err := AvgVolume(bars, 20)
	suite.Require().NoError(err)
	suite.InDelta(1000, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestVWAP() {
	bars := []types.Bar{
		{High: 102, Low: 98, Close: 100, Volume: 100}, // typical 100
		{High: 112, Low: 108, Close: 110, Volume: 300}, // typical 110
	}

	value, err := VWAP(bars)
	suite.Require().NoError(err)
	suite.InDelta((100*100.0+110*300.0)/400.0, value, 1e-9)
}

func (suite *IndicatorTestSuite) TestVWAPZeroVolume() {
	bars := []types.Bar{{High: 102, Low: 98, Close: 100, Volume: 0}}

	_, err := VWAP(bars)
	suite.True(errors.HasCode(err, errors.ErrCodeIndicatorCalculation))
}

func (suite *IndicatorTestSuite) TestOpeningRange() {
	closes := []float64{100, 104, 98, 102, 101, 99, 150, 50}
	bars := barsFromCloses(closes)

	high, low, err := OpeningRange(bars, 6)
	suite.Require().NoError(err)
	suite.InDelta(105, high, 1e-9) // bar 1 high = 104+1
	suite.InDelta(97, low, 1e-9)   // bar 2 low = 98-1
}

func (suite *IndicatorTestSuite) TestOpeningRangeShortSession() {
	bars := barsFromCloses([]float64{100, 101})

	high, low, err := OpeningRange(bars, 6)
	suite.Require().NoError(err)
	suite.InDelta(102, high, 1e-9)
	suite.InDelta(99, low, 1e-9)
}
