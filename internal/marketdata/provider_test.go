package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/quantframe-labs/intrascan/internal/logger"
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

type ProviderTestSuite struct {
	suite.Suite
	log *logger.Logger
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) SetupSuite() {
	suite.log = logger.NewNopLogger()
}

func sampleBars(symbol string, n int) []types.Bar {
	start := time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)
	bars := make([]types.Bar, n)

	for i := range bars {
		bars[i] = types.Bar{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100.5,
			Volume: 1000,
		}
	}

	return bars
}

type countingProvider struct {
	name  string
	bars  []types.Bar
	err   error
	calls int
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) FetchBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	return p.bars, nil
}

func (suite *ProviderTestSuite) TestStaticProvider() {
	provider := NewStaticProvider("static", map[string][]types.Bar{
		"TCS": sampleBars("TCS", 5),
	})

	bars, err := provider.FetchBars(context.Background(), "TCS", 10)
	suite.NoError(err)
	suite.Len(bars, 5)

	_, err = provider.FetchBars(context.Background(), "UNKNOWN", 10)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *ProviderTestSuite) TestStaticProviderSortsBars() {
	bars := sampleBars("TCS", 3)
	shuffled := []types.Bar{bars[2], bars[0], bars[1]}

	provider := NewStaticProvider("static", map[string][]types.Bar{"TCS": shuffled})

	got, err := provider.FetchBars(context.Background(), "TCS", 10)
	suite.Require().NoError(err)
	suite.True(got[0].Time.Before(got[1].Time))
	suite.True(got[1].Time.Before(got[2].Time))
}

func (suite *ProviderTestSuite) TestChainFirstSuccessWins() {
	first := &countingProvider{name: "first", bars: sampleBars("TCS", 3)}
	second := &countingProvider{name: "second", bars: sampleBars("TCS", 7)}

	chain := NewChainProvider(suite.log, first, second)

	bars, err := chain.FetchBars(context.Background(), "TCS", 10)
	suite.NoError(err)
	suite.Len(bars, 3)
	suite.Equal(1, first.calls)
	suite.Equal(0, second.calls)
}

func (suite *ProviderTestSuite) TestChainFallsBack() {
	first := &countingProvider{name: "first", err: errors.New(errors.ErrCodeFetchFailed, "down")}
	second := &countingProvider{name: "second", bars: sampleBars("TCS", 7)}

	chain := NewChainProvider(suite.log, first, second)

	bars, err := chain.FetchBars(context.Background(), "TCS", 10)
	suite.NoError(err)
	suite.Len(bars, 7)
	suite.Equal(1, first.calls)
	suite.Equal(1, second.calls)
}

func (suite *ProviderTestSuite) TestChainAllFail() {
	first := &countingProvider{name: "first", err: errors.New(errors.ErrCodeFetchFailed, "down")}
	second := &countingProvider{name: "second", err: errors.New(errors.ErrCodeDataUnavailable, "empty")}

	chain := NewChainProvider(suite.log, first, second)

	_, err := chain.FetchBars(context.Background(), "TCS", 10)
	suite.True(errors.HasCode(err, errors.ErrCodeAllProvidersDown))
}

func (suite *ProviderTestSuite) TestChainEmpty() {
	chain := NewChainProvider(suite.log)

	_, err := chain.FetchBars(context.Background(), "TCS", 10)
	suite.True(errors.HasCode(err, errors.ErrCodeAllProvidersDown))
}

func (suite *ProviderTestSuite) TestCachedProviderHitsOnce() {
	inner := &countingProvider{name: "inner", bars: sampleBars("TCS", 5)}
	cached := NewCachedProvider(inner, time.Minute)

	for i := 0; i < 3; i++ {
		bars, err := cached.FetchBars(context.Background(), "TCS", 10)
		suite.NoError(err)
		suite.Len(bars, 5)
	}

	suite.Equal(1, inner.calls)
}

func (suite *ProviderTestSuite) TestCachedProviderKeysOnDays() {
	inner := &countingProvider{name: "inner", bars: sampleBars("TCS", 5)}
	cached := NewCachedProvider(inner, time.Minute)

	_, err := cached.FetchBars(context.Background(), "TCS", 10)
	suite.NoError(err)
	_, err = cached.FetchBars(context.Background(), "TCS", 30)
	suite.NoError(err)
	suite.Equal(2, inner.calls)
}

func (suite *ProviderTestSuite) TestCachedProviderDoesNotCacheFailures() {
	inner := &countingProvider{name: "inner", err: errors.New(errors.ErrCodeFetchFailed, "down")}
	cached := NewCachedProvider(inner, time.Minute)

	_, err := cached.FetchBars(context.Background(), "TCS", 10)
	suite.Error(err)
	_, err = cached.FetchBars(context.Background(), "TCS", 10)
	suite.Error(err)
	suite.Equal(2, inner.calls)
}

func (suite *ProviderTestSuite) TestHTTPProviderFetch() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("RELIANCE", r.URL.Query().Get("symbol"))
		suite.Equal("5", r.URL.Query().Get("days"))

		fmt.Fprint(w, `{
			"symbol": "RELIANCE",
			"candles": [
				{"timestamp": "2024-03-05T04:00:00Z", "open": 101, "high": 102, "low": 100, "close": 101.5, "volume": 2000},
				{"timestamp": "2024-03-05T03:55:00Z", "open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 1000}
			]
		}`)
	}))
	defer server.Close()

	provider := NewHTTPProvider("vendor-a", server.URL, NewRateLimitedClient(DefaultHTTPClientConfig()))

	bars, err := provider.FetchBars(context.Background(), "RELIANCE", 5)
	suite.Require().NoError(err)
	suite.Len(bars, 2)

	// out-of-order payload is sorted into replay order
	suite.True(bars[0].Time.Before(bars[1].Time))
	suite.Equal("RELIANCE", bars[0].Symbol)
	suite.InDelta(100.5, bars[0].Close, 1e-9)
}

func (suite *ProviderTestSuite) TestHTTPProviderEmptyPayload() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol": "RELIANCE", "candles": []}`)
	}))
	defer server.Close()

	provider := NewHTTPProvider("vendor-a", server.URL, NewRateLimitedClient(DefaultHTTPClientConfig()))

	_, err := provider.FetchBars(context.Background(), "RELIANCE", 5)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *ProviderTestSuite) TestHTTPProviderMalformedPayload() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>rate limited</html>`)
	}))
	defer server.Close()

	provider := NewHTTPProvider("vendor-a", server.URL, NewRateLimitedClient(DefaultHTTPClientConfig()))

	_, err := provider.FetchBars(context.Background(), "RELIANCE", 5)
	suite.True(errors.HasCode(err, errors.ErrCodeParseFailed))
}

func (suite *ProviderTestSuite) TestHTTPProviderServerError() {
	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 1
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 2 * time.Millisecond
	cfg.RateLimit = 1000

	provider := NewHTTPProvider("vendor-a", server.URL, NewRateLimitedClient(cfg))

	_, err := provider.FetchBars(context.Background(), "RELIANCE", 5)
	suite.True(errors.HasCode(err, errors.ErrCodeFetchFailed))
	suite.Equal(2, calls) // initial attempt plus one retry
}
