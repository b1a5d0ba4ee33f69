// Package quotes resolves current market quotes from price history.
package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/rs/zerolog"
)

// Service implements domain.QuoteSource from the latest history point
type Service struct {
	source domain.MarketDataSource
	period domain.Period
	log    zerolog.Logger
}

// NewService creates a quote service reading the given history period
func NewService(source domain.MarketDataSource, period domain.Period, log zerolog.Logger) *Service {
	if period == "" {
		period = domain.PeriodHour
	}
	return &Service{
		source: source,
		period: period,
		log:    log.With().Str("service", "quotes").Logger(),
	}
}

// Quote returns the most recent buy/sell prices for item.
// Failures caused by ctx are returned as-is, not as ErrQuoteUnavailable.
func (s *Service) Quote(ctx context.Context, item string) (domain.MarketQuote, error) {
	points, err := s.source.GetHistory(ctx, item, s.period)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteUnavailable) {
			return domain.MarketQuote{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.MarketQuote{}, fmt.Errorf("quote for %s: %w", item, ctxErr)
		}
		return domain.MarketQuote{}, fmt.Errorf("%w: %s: %w", domain.ErrQuoteUnavailable, item, err)
	}
	if len(points) == 0 {
		return domain.MarketQuote{}, fmt.Errorf("%w: %s: empty history", domain.ErrQuoteUnavailable, item)
	}

	last := points[len(points)-1]
	return domain.MarketQuote{
		AsOf: last.Timestamp,
		Item: item,
		Buy:  last.Buy,
		Sell: last.Sell,
	}, nil
}

// Quotes resolves several items, skipping those without a quote.
// The second return lists the items that failed.
func (s *Service) Quotes(ctx context.Context, items []string) (map[string]domain.MarketQuote, map[string]error) {
	out := make(map[string]domain.MarketQuote, len(items))
	failed := make(map[string]error)
	for _, item := range items {
		q, err := s.Quote(ctx, item)
		if err != nil {
			s.log.Warn().Err(err).Str("item", item).Msg("Quote unavailable")
			failed[item] = err
			continue
		}
		out[item] = q
	}
	return out, failed
}
