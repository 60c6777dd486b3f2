package types

import "time"

// Bar is a single OHLCV candle. Bars are immutable once produced by a
// provider and are ordered by strictly increasing timestamp within a symbol.
type Bar struct {
	Symbol string    `csv:"symbol" yaml:"symbol" json:"symbol"`
	Time   time.Time `csv:"time" yaml:"time" json:"time"`
	Open   float64   `csv:"open" yaml:"open" json:"open"`
	High   float64   `csv:"high" yaml:"high" json:"high"`
	Low    float64   `csv:"low" yaml:"low" json:"low"`
	Close  float64   `csv:"close" yaml:"close" json:"close"`
	Volume float64   `csv:"volume" yaml:"volume" json:"volume"`
}

// TypicalPrice returns (high + low + close) / 3, the price used for
// session VWAP accumulation.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Date returns the calendar date of the bar in the bar's location,
// truncated to midnight. Used for per-day session grouping.
func (b Bar) Date() time.Time {
	year, month, day := b.Time.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, b.Time.Location())
}

// GroupByDay splits an ordered bar sequence into per-day sessions,
// preserving bar order within each day. The returned day keys are sorted
// in ascending order.
func GroupByDay(bars []Bar) (days []time.Time, byDay map[time.Time][]Bar) {
	byDay = make(map[time.Time][]Bar)

	for _, bar := range bars {
		date := bar.Date()
		if _, ok := byDay[date]; !ok {
			days = append(days, date)
		}

		byDay[date] = append(byDay[date], bar)
	}

	return days, byDay
}
