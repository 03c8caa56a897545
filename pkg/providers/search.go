package providers

import (
	"context"
	"log/slog"

	"stockwatch/pkg/model"
)

// SearchChain resolves a ticker to a quote by trying providers in
// order, first hit wins. The order is a cost ordering: free domestic
// first, metered lookup second, free-but-sparse fallback last.
type SearchChain struct {
	quoters []SingleQuoter
	logger  *slog.Logger
}

// NewSearchChain builds a chain over the given quoters.
func NewSearchChain(logger *slog.Logger, quoters ...SingleQuoter) *SearchChain {
	return &SearchChain{quoters: quoters, logger: logger}
}

// Find returns the first quote any provider produces for ticker, or
// nil when every provider comes up empty.
func (s *SearchChain) Find(ctx context.Context, ticker string) *model.Quote {
	for _, q := range s.quoters {
		if quote := q.FetchOne(ctx, ticker); quote != nil {
			s.logger.Debug("ticker resolved", "ticker", ticker, "provider", q.Name())
			return quote
		}
	}
	s.logger.Info("ticker not found on any provider", "ticker", ticker)
	return nil
}
