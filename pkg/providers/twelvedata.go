package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/pkg/model"
	"stockwatch/pkg/quota"
)

// TwelveDataConfig configures the metered batch adapter.
type TwelveDataConfig struct {
	BaseURL   string
	APIKey    string
	ChunkSize int // symbols per HTTP request
	Timeout   time.Duration
}

// DefaultTwelveDataConfig returns the production Twelve Data settings.
// The chunk size matches the Basic plan's per-minute credit budget so
// one chunk per rate-limiter slot stays inside the quota.
func DefaultTwelveDataConfig() TwelveDataConfig {
	return TwelveDataConfig{
		BaseURL:   "https://api.twelvedata.com",
		ChunkSize: 8,
		Timeout:   15 * time.Second,
	}
}

// exchangeCurrency maps exchange codes to their trading currency, used
// when the provider omits the currency field.
var exchangeCurrency = map[string]string{
	"NASDAQ":    "USD",
	"NYSE":      "USD",
	"NYSE ARCA": "USD",
	"NYSE MKT":  "USD",
	"CBOE":      "USD",
	"HKEX":      "HKD",
	"HKSE":      "HKD",
}

// TwelveData fetches prices from the Twelve Data API. The plan is
// metered: a hard daily credit quota and a per-minute request cap, so
// every call goes through the injected ledger and limiter.
type TwelveData struct {
	cfg     TwelveDataConfig
	limiter *quota.Limiter
	ledger  *quota.Ledger
	client  *http.Client
	logger  *slog.Logger
}

// NewTwelveData creates the metered adapter.
func NewTwelveData(cfg TwelveDataConfig, limiter *quota.Limiter, ledger *quota.Ledger, logger *slog.Logger) *TwelveData {
	defaults := DefaultTwelveDataConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &TwelveData{
		cfg:     cfg,
		limiter: limiter,
		ledger:  ledger,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (t *TwelveData) Name() string { return "twelvedata" }

// FetchOne resolves one ticker through /quote. Costs 1 credit, paid
// from the reserve floor; only the hard daily limit can block it.
func (t *TwelveData) FetchOne(ctx context.Context, ticker string) *model.Quote {
	if t.cfg.APIKey == "" {
		return nil
	}
	if t.ledger.Remaining() <= 0 {
		t.logger.Warn("twelvedata daily limit exhausted, quote skipped", "ticker", ticker)
		return nil
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("apikey", t.cfg.APIKey)
	params.Set("format", "JSON")
	endpoint := fmt.Sprintf("%s/quote?%s", t.cfg.BaseURL, params.Encode())

	if err := t.limiter.Admit(ctx); err != nil {
		return nil
	}

	var payload struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Exchange string `json:"exchange"`
		Currency string `json:"currency"`
		Close    string `json:"close"`
		Code     *int   `json:"code"`
		Status   string `json:"status"`
		Message  string `json:"message"`
	}
	if err := getJSON(ctx, t.client, endpoint, &payload); err != nil {
		t.logger.Warn("twelvedata quote failed", "ticker", ticker, "error", err)
		return nil
	}
	if payload.Code != nil || payload.Status == "error" {
		t.logger.Debug("twelvedata quote rejected", "ticker", ticker, "message", payload.Message)
		return nil
	}

	price, ok := parsePositive(payload.Close)
	if !ok {
		return nil
	}

	t.ledger.Charge(1)

	currency := payload.Currency
	if currency == "" {
		currency = exchangeCurrency[payload.Exchange]
	}
	if currency == "" {
		currency = "USD"
	}

	symbol := payload.Symbol
	if symbol == "" {
		symbol = ticker
	}
	company := payload.Name
	if company == "" {
		company = ticker
	}

	return &model.Quote{
		Ticker:      symbol,
		CompanyName: company,
		Price:       price,
		Currency:    currency,
		Exchange:    payload.Exchange,
	}
}

// FetchMany prices tickers through /price in rate-limited chunks.
//
// The request list is clipped to the credits available above the
// reserve floor, preserving input order. Each chunk is charged by its
// full requested size, whatever the provider managed to price.
func (t *TwelveData) FetchMany(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	if len(tickers) == 0 || t.cfg.APIKey == "" {
		return prices
	}

	available := t.ledger.AvailableForBatch()
	if available <= 0 {
		t.logger.Info("twelvedata batch skipped, no credits above reserve",
			"remaining", t.ledger.Remaining(), "reserve", t.ledger.Reserve())
		return prices
	}

	if len(tickers) > available {
		t.logger.Warn("twelvedata batch clipped to credit budget",
			"requested", len(tickers), "clipped", available)
		tickers = tickers[:available]
	}

	chunks := chunkTickers(tickers, t.cfg.ChunkSize)
	t.logger.Info("twelvedata batch starting",
		"tickers", len(tickers), "requests", len(chunks), "chunk_size", t.cfg.ChunkSize)

	spent := 0
	for _, chunk := range chunks {
		for ticker, price := range t.fetchChunk(ctx, chunk) {
			prices[ticker] = price
		}
		// Billing follows request shape, not response completeness.
		t.ledger.Charge(len(chunk))
		spent += len(chunk)
	}

	t.logger.Info("twelvedata batch done",
		"priced", len(prices), "requested", len(tickers), "credits", spent)
	return prices
}

// fetchChunk issues one /price call for a group of tickers.
func (t *TwelveData) fetchChunk(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)

	params := url.Values{}
	params.Set("symbol", strings.Join(tickers, ","))
	params.Set("apikey", t.cfg.APIKey)
	params.Set("format", "JSON")
	endpoint := fmt.Sprintf("%s/price?%s", t.cfg.BaseURL, params.Encode())

	if err := t.limiter.Admit(ctx); err != nil {
		return prices
	}

	var payload map[string]json.RawMessage
	if err := getJSON(ctx, t.client, endpoint, &payload); err != nil {
		t.logger.Warn("twelvedata price chunk failed",
			"tickers", strings.Join(tickers, ","), "error", err)
		return prices
	}
	if _, isErr := payload["code"]; isErr {
		t.logger.Warn("twelvedata price chunk rejected", "body", flattenError(payload))
		return prices
	}

	if len(tickers) == 1 {
		// Single ticker: {"price": "189.30"}
		if price, ok := rawPrice(payload["price"]); ok {
			prices[tickers[0]] = price
		}
		return prices
	}

	// Several tickers: {"AAPL": {"price": "189.30"}, ...}
	for _, ticker := range tickers {
		entry, ok := payload[ticker]
		if !ok {
			continue
		}
		var inner struct {
			Price string `json:"price"`
		}
		if err := json.Unmarshal(entry, &inner); err != nil {
			continue
		}
		if price, ok := parsePositive(inner.Price); ok {
			prices[ticker] = price
		}
	}
	return prices
}

// rawPrice parses a bare {"price": "..."} value which may be a JSON
// string or number.
func rawPrice(raw json.RawMessage) (decimal.Decimal, bool) {
	if raw == nil {
		return decimal.Decimal{}, false
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return parsePositive(asString)
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil && asNumber > 0 {
		return decimal.NewFromFloat(asNumber), true
	}
	return decimal.Decimal{}, false
}

func flattenError(payload map[string]json.RawMessage) string {
	if msg, ok := payload["message"]; ok {
		return string(msg)
	}
	return fmt.Sprintf("%v", payload)
}

// chunkTickers splits tickers into groups of at most size, preserving order.
func chunkTickers(tickers []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		chunks = append(chunks, tickers[start:end])
	}
	return chunks
}
