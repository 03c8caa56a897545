// Package providers contains the three price-source adapters and the
// ticker-search fallback chain.
//
// Adapters never let a provider failure escape their boundary: network
// errors, timeouts, non-success responses and malformed payloads all
// degrade to "no data this round" with a log line. The next cycle
// retries naturally.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"stockwatch/pkg/model"
)

// SingleQuoter resolves one ticker to a full normalized quote.
// A nil result means the ticker could not be priced right now.
type SingleQuoter interface {
	Name() string
	FetchOne(ctx context.Context, ticker string) *model.Quote
}

// BatchPricer prices many tickers in one logical call. Tickers with no
// resolvable price are simply absent from the result map.
type BatchPricer interface {
	Name() string
	FetchMany(ctx context.Context, tickers []string) map[string]decimal.Decimal
}

// getJSON issues a GET and decodes the JSON body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little for connection reuse diagnostics.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parsePositive converts a provider price string to a decimal,
// rejecting zero and negative values.
func parsePositive(raw string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, false
	}
	return price, true
}
