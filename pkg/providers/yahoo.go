package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/pkg/model"
)

// YahooConfig configures the free batch adapter.
type YahooConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultYahooConfig returns the production Yahoo Finance settings.
func DefaultYahooConfig() YahooConfig {
	return YahooConfig{
		BaseURL: "https://query1.finance.yahoo.com",
		Timeout: 15 * time.Second,
	}
}

// Yahoo fetches prices from Yahoo Finance. The source is free and
// unmetered and accepts arbitrarily many tickers per call, which makes
// it the workhorse for continuous foreign-market monitoring.
type Yahoo struct {
	cfg    YahooConfig
	client *http.Client
	logger *slog.Logger
}

// NewYahoo creates the free batch adapter.
func NewYahoo(cfg YahooConfig, logger *slog.Logger) *Yahoo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultYahooConfig().Timeout
	}
	return &Yahoo{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

type sparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string `json:"symbol"`
			Response []struct {
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"response"`
		} `json:"result"`
	} `json:"spark"`
}

// FetchMany prices all tickers in one call. An intraday query is tried
// first; when it yields nothing (market closed, no same-day bars) a
// multi-day daily-close query supplies the last known price instead.
func (y *Yahoo) FetchMany(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	if len(tickers) == 0 {
		return map[string]decimal.Decimal{}
	}

	prices := y.spark(ctx, tickers, "1d", "5m")
	if len(prices) == 0 {
		prices = y.spark(ctx, tickers, "5d", "1d")
	}
	return prices
}

// spark issues one spark query for all tickers with the given range
// and bar interval.
func (y *Yahoo) spark(ctx context.Context, tickers []string, rng, interval string) map[string]decimal.Decimal {
	params := url.Values{}
	params.Set("symbols", strings.Join(tickers, ","))
	params.Set("range", rng)
	params.Set("interval", interval)

	endpoint := fmt.Sprintf("%s/v8/finance/spark?%s", y.cfg.BaseURL, params.Encode())

	var payload sparkResponse
	if err := getJSON(ctx, y.client, endpoint, &payload); err != nil {
		y.logger.Warn("yahoo spark failed",
			"tickers", len(tickers), "range", rng, "error", err)
		return map[string]decimal.Decimal{}
	}

	prices := make(map[string]decimal.Decimal)
	for _, res := range payload.Spark.Result {
		if len(res.Response) == 0 || len(res.Response[0].Indicators.Quote) == 0 {
			continue
		}
		if price, ok := lastClose(res.Response[0].Indicators.Quote[0].Close); ok {
			prices[res.Symbol] = price
		}
	}
	return prices
}

// lastClose returns the most recent non-null positive close.
func lastClose(closes []*float64) (decimal.Decimal, bool) {
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil && *closes[i] > 0 {
			return decimal.NewFromFloat(*closes[i]), true
		}
	}
	return decimal.Decimal{}, false
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			ShortName          string   `json:"shortName"`
			LongName           string   `json:"longName"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			Currency           string   `json:"currency"`
			FullExchangeName   string   `json:"fullExchangeName"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// FetchOne resolves a single ticker with metadata, used as the last
// resort of the ticker-search chain.
func (y *Yahoo) FetchOne(ctx context.Context, ticker string) *model.Quote {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	params := url.Values{}
	params.Set("symbols", ticker)
	endpoint := fmt.Sprintf("%s/v7/finance/quote?%s", y.cfg.BaseURL, params.Encode())

	var payload yahooQuoteResponse
	if err := getJSON(ctx, y.client, endpoint, &payload); err != nil {
		y.logger.Warn("yahoo quote failed", "ticker", ticker, "error", err)
		return nil
	}
	if len(payload.QuoteResponse.Result) == 0 {
		return nil
	}

	res := payload.QuoteResponse.Result[0]
	if res.RegularMarketPrice == nil || *res.RegularMarketPrice <= 0 {
		return nil
	}

	company := res.LongName
	if company == "" {
		company = res.ShortName
	}
	if company == "" {
		company = ticker
	}

	return &model.Quote{
		Ticker:      res.Symbol,
		CompanyName: company,
		Price:       decimal.NewFromFloat(*res.RegularMarketPrice),
		Currency:    res.Currency,
		Exchange:    res.FullExchangeName,
	}
}
