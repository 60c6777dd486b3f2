package marketdata

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantframe-labs/intrascan/internal/logger"
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// ChainProvider tries each vendor in order and returns the first
// successful fetch. All vendors failing yields a single skip-symbol
// error carrying the last vendor's failure.
type ChainProvider struct {
	providers []Provider
	log       *logger.Logger
}

// NewChainProvider creates a fallback chain over providers, tried in the
// given order.
func NewChainProvider(log *logger.Logger, providers ...Provider) *ChainProvider {
	return &ChainProvider{
		providers: providers,
		log:       log,
	}
}

// Name implements Provider.
func (c *ChainProvider) Name() string {
	return "chain"
}

// FetchBars implements Provider.
func (c *ChainProvider) FetchBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	if len(c.providers) == 0 {
		return nil, errors.New(errors.ErrCodeAllProvidersDown, "no providers configured")
	}

	var lastErr error

	for _, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeProviderTimeout, "fetch cancelled", err)
		}

		bars, err := provider.FetchBars(ctx, symbol, days)
		if err == nil {
			return bars, nil
		}

		lastErr = err

		c.log.Warn("Provider failed, trying next",
			zap.String("provider", provider.Name()),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}

	return nil, errors.Wrapf(errors.ErrCodeAllProvidersDown, lastErr, "all providers failed for %s", symbol)
}
