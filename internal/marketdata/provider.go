// Package marketdata supplies historical intraday bars to the backtest
// engine. Vendors sit behind the Provider interface; the engine treats
// any provider failure as "skip this symbol", never as fatal.
package marketdata

import (
	"context"
	"sort"

	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// Provider fetches an ordered, gap-tolerant bar sequence for a symbol
// covering the trailing number of calendar days.
type Provider interface {
	Name() string
	FetchBars(ctx context.Context, symbol string, days int) ([]types.Bar, error)
}

// StaticProvider serves bars from memory. Used by tests and for replaying
// previously exported datasets deterministically.
type StaticProvider struct {
	name string
	bars map[string][]types.Bar
}

// NewStaticProvider creates a provider over an in-memory dataset. Bars
// are sorted by timestamp per symbol so callers always see replay order.
func NewStaticProvider(name string, bars map[string][]types.Bar) *StaticProvider {
	for symbol := range bars {
		sorted := bars[symbol]
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Time.Before(sorted[j].Time)
		})
		bars[symbol] = sorted
	}

	return &StaticProvider{name: name, bars: bars}
}

// Name implements Provider.
func (p *StaticProvider) Name() string {
	return p.name
}

// FetchBars implements Provider.
func (p *StaticProvider) FetchBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderTimeout, "fetch cancelled", err)
	}

	bars, ok := p.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "no bars for symbol %s", symbol)
	}

	return bars, nil
}
