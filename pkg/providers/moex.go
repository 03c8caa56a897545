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

// MOEXConfig configures the domestic single-quote adapter.
type MOEXConfig struct {
	BaseURL string        // ISS API root
	Board   string        // trading board, main mode
	Timeout time.Duration // per-call HTTP timeout
}

// DefaultMOEXConfig returns the production MOEX ISS settings.
func DefaultMOEXConfig() MOEXConfig {
	return MOEXConfig{
		BaseURL: "https://iss.moex.com/iss",
		Board:   "TQBR",
		Timeout: 10 * time.Second,
	}
}

// MOEX fetches quotes from the Moscow Exchange ISS API. The source is
// free and imposes no rate limit; quotes are delayed ~15 minutes.
type MOEX struct {
	cfg    MOEXConfig
	client *http.Client
	logger *slog.Logger
}

// NewMOEX creates the domestic adapter.
func NewMOEX(cfg MOEXConfig, logger *slog.Logger) *MOEX {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMOEXConfig().BaseURL
	}
	if cfg.Board == "" {
		cfg.Board = DefaultMOEXConfig().Board
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMOEXConfig().Timeout
	}
	return &MOEX{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (m *MOEX) Name() string { return "moex" }

// issTable is the ISS "columns + data rows" encoding.
type issTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// firstRow zips column names onto the first data row.
func (t issTable) firstRow() map[string]any {
	if len(t.Data) == 0 {
		return nil
	}
	row := make(map[string]any, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(t.Data[0]) {
			row[col] = t.Data[0][i]
		}
	}
	return row
}

// FetchOne looks a ticker up on the main trading board.
func (m *MOEX) FetchOne(ctx context.Context, ticker string) *model.Quote {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	params := url.Values{}
	params.Set("iss.meta", "off")
	params.Set("iss.only", "securities,marketdata")
	params.Set("securities.columns", "SECID,SECNAME,SHORTNAME,PREVPRICE")
	params.Set("marketdata.columns", "SECID,LAST,CLOSEPRICE,MARKETPRICE2")

	endpoint := fmt.Sprintf("%s/engines/stock/markets/shares/boards/%s/securities/%s.json?%s",
		m.cfg.BaseURL, m.cfg.Board, url.PathEscape(ticker), params.Encode())

	var payload struct {
		Securities issTable `json:"securities"`
		Marketdata issTable `json:"marketdata"`
	}
	if err := getJSON(ctx, m.client, endpoint, &payload); err != nil {
		m.logger.Warn("moex request failed", "ticker", ticker, "error", err)
		return nil
	}

	sec := payload.Securities.firstRow()
	md := payload.Marketdata.firstRow()
	if sec == nil || md == nil {
		return nil
	}

	// Last trade first, then today's close, then prior-day marks.
	price, ok := firstPrice(md["LAST"], md["CLOSEPRICE"], md["MARKETPRICE2"], sec["PREVPRICE"])
	if !ok {
		return nil
	}

	company := stringField(sec, "SECNAME")
	if company == "" {
		company = stringField(sec, "SHORTNAME")
	}
	if company == "" {
		company = ticker
	}

	return &model.Quote{
		Ticker:      ticker,
		CompanyName: company,
		Price:       price,
		Currency:    "RUB",
		Exchange:    model.ExchangeMOEX,
	}
}

// firstPrice returns the first usable positive price among candidates.
func firstPrice(candidates ...any) (decimal.Decimal, bool) {
	for _, c := range candidates {
		switch v := c.(type) {
		case float64:
			if v > 0 {
				return decimal.NewFromFloat(v), true
			}
		case string:
			if price, ok := parsePositive(v); ok {
				return price, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func stringField(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}
