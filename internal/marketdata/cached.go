package marketdata

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/quantframe-labs/intrascan/internal/types"
)

// CachedProvider wraps a provider with a TTL cache so repeated runs over
// the same universe do not refetch from the vendors. Failed fetches are
// not cached.
type CachedProvider struct {
	inner Provider
	cache *gocache.Cache
}

// NewCachedProvider creates a caching wrapper with the given TTL.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Name implements Provider.
func (c *CachedProvider) Name() string {
	return fmt.Sprintf("cached(%s)", c.inner.Name())
}

// FetchBars implements Provider.
func (c *CachedProvider) FetchBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	key := fmt.Sprintf("%s:%d", symbol, days)

	if cached, ok := c.cache.Get(key); ok {
		if bars, ok := cached.([]types.Bar); ok {
			return bars, nil
		}
	}

	bars, err := c.inner.FetchBars(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, bars, gocache.DefaultExpiration)

	return bars, nil
}
