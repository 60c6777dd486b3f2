package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// HTTPClientConfig holds configuration for the vendor HTTP client.
type HTTPClientConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second
}

// DefaultHTTPClientConfig returns the recommended defaults. Vendor candle
// endpoints throttle aggressively, so the rate limit is conservative.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:      15 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		RateLimit:    3.0,
	}
}

// RateLimitedClient wraps retryablehttp.Client with request rate limiting.
type RateLimitedClient struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

// NewRateLimitedClient creates a rate-limited retrying HTTP client.
func NewRateLimitedClient(cfg HTTPClientConfig) *RateLimitedClient {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil

	return &RateLimitedClient{
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Get executes a rate-limited GET honoring the context deadline.
func (c *RateLimitedClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	return c.client.Do(req)
}

// candlePayload is the wire shape shared by the supported vendor candle
// endpoints.
type candlePayload struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Timestamp time.Time `json:"timestamp"`
		Open      float64   `json:"open"`
		High      float64   `json:"high"`
		Low       float64   `json:"low"`
		Close     float64   `json:"close"`
		Volume    float64   `json:"volume"`
	} `json:"candles"`
}

// HTTPProvider fetches bars from a JSON-over-HTTP vendor candle API.
type HTTPProvider struct {
	name    string
	baseURL string
	client  *RateLimitedClient
}

// NewHTTPProvider creates a provider against the vendor endpoint at
// baseURL. The name identifies the vendor in logs and errors.
func NewHTTPProvider(name string, baseURL string, client *RateLimitedClient) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		client:  client,
	}
}

// Name implements Provider.
func (p *HTTPProvider) Name() string {
	return p.name
}

// FetchBars implements Provider. Partial history is tolerated: the caller
// receives whatever ordered bars the vendor returned. An empty payload is
// an error so the chain can try the next vendor.
func (p *HTTPProvider) FetchBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	endpoint := fmt.Sprintf("%s/candles?symbol=%s&interval=5m&days=%d",
		p.baseURL, url.QueryEscape(symbol), days)

	resp, err := p.client.Get(ctx, endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(errors.ErrCodeProviderTimeout, err, "%s timed out fetching %s", p.name, symbol)
		}

		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "%s request failed for %s", p.name, symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeFetchFailed, "%s returned status %d for %s", p.name, resp.StatusCode, symbol)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "%s body read failed for %s", p.name, symbol)
	}

	var payload candlePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeParseFailed, err, "%s returned malformed payload for %s", p.name, symbol)
	}

	if len(payload.Candles) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "%s returned no candles for %s", p.name, symbol)
	}

	bars := make([]types.Bar, 0, len(payload.Candles))
	for _, candle := range payload.Candles {
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   candle.Timestamp,
			Open:   candle.Open,
			High:   candle.High,
			Low:    candle.Low,
			Close:  candle.Close,
			Volume: candle.Volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	return bars, nil
}
