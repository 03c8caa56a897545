package providers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/pkg/providers"
)

func sparkBody(symbol string, closes string) string {
	return fmt.Sprintf(`{
		"spark": {
			"result": [{
				"symbol": %q,
				"response": [{"indicators": {"quote": [{"close": %s}]}}]
			}]
		}
	}`, symbol, closes)
}

func TestYahooIntradayBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "1d", r.URL.Query().Get("range"))
		fmt.Fprint(w, sparkBody("AAPL", "[188.1, null, 189.3]"))
	}))
	defer srv.Close()

	y := providers.NewYahoo(providers.YahooConfig{BaseURL: srv.URL}, discard())
	prices := y.FetchMany(context.Background(), []string{"AAPL"})

	require.Len(t, prices, 1)
	assert.Equal(t, "189.3", prices["AAPL"].String(), "latest non-null bar wins")
	assert.Equal(t, int32(1), calls.Load(), "no daily fallback when intraday answers")
}

func TestYahooFallsBackToDailyCloses(t *testing.T) {
	var ranges []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.URL.Query().Get("range")
		ranges = append(ranges, rng)
		if rng == "1d" {
			fmt.Fprint(w, `{"spark": {"result": []}}`)
			return
		}
		fmt.Fprint(w, sparkBody("0700.HK", "[361.2, 365.8]"))
	}))
	defer srv.Close()

	y := providers.NewYahoo(providers.YahooConfig{BaseURL: srv.URL}, discard())
	prices := y.FetchMany(context.Background(), []string{"0700.HK"})

	require.Len(t, prices, 1)
	assert.Equal(t, "365.8", prices["0700.HK"].String())
	assert.Equal(t, []string{"1d", "5d"}, ranges)
}

func TestYahooAllNullClosesSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sparkBody("HALT", "[null, null]"))
	}))
	defer srv.Close()

	y := providers.NewYahoo(providers.YahooConfig{BaseURL: srv.URL}, discard())
	prices := y.FetchMany(context.Background(), []string{"HALT"})

	assert.Empty(t, prices)
}

func TestYahooQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v7/finance/quote", r.URL.Path)
		fmt.Fprint(w, `{
			"quoteResponse": {
				"result": [{
					"symbol": "TSLA",
					"shortName": "Tesla, Inc.",
					"longName": "Tesla, Inc.",
					"regularMarketPrice": 244.12,
					"currency": "USD",
					"fullExchangeName": "NASDAQ"
				}]
			}
		}`)
	}))
	defer srv.Close()

	y := providers.NewYahoo(providers.YahooConfig{BaseURL: srv.URL}, discard())
	quote := y.FetchOne(context.Background(), "tsla")

	require.NotNil(t, quote)
	assert.Equal(t, "TSLA", quote.Ticker)
	assert.Equal(t, "Tesla, Inc.", quote.CompanyName)
	assert.Equal(t, "244.12", quote.Price.String())
	assert.Equal(t, "NASDAQ", quote.Exchange)
}

func TestYahooQuoteNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse": {"result": []}}`)
	}))
	defer srv.Close()

	y := providers.NewYahoo(providers.YahooConfig{BaseURL: srv.URL}, discard())
	assert.Nil(t, y.FetchOne(context.Background(), "NOPE"))
}
