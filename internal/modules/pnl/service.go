package pnl

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/rs/zerolog"
)

// LedgerReader is the part of the ledger the reports read
type LedgerReader interface {
	ListHoldings(ctx context.Context) ([]domain.Holding, error)
	ListTradesForDate(ctx context.Context, date time.Time) ([]domain.RealizedTrade, error)
}

// Service builds PnL reports from the ledger and a quote source
type Service struct {
	calc   *Calculator
	ledger LedgerReader
	quotes domain.QuoteSource
	log    zerolog.Logger
}

// NewService creates a PnL report service
func NewService(calc *Calculator, ledger LedgerReader, quotes domain.QuoteSource, log zerolog.Logger) *Service {
	return &Service{
		calc:   calc,
		ledger: ledger,
		quotes: quotes,
		log:    log.With().Str("service", "pnl").Logger(),
	}
}

// Calculator returns the service's calculator
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// HoldingsReport marks all open holdings to market
func (s *Service) HoldingsReport(ctx context.Context, policy MissingQuotePolicy) (HoldingsSummary, error) {
	holdings, err := s.ledger.ListHoldings(ctx)
	if err != nil {
		return HoldingsSummary{}, fmt.Errorf("failed to load holdings: %w", err)
	}

	summary, err := s.calc.Holdings(ctx, holdings, s.quotes, policy)
	if err != nil {
		return HoldingsSummary{}, err
	}

	if len(summary.Skipped) > 0 {
		s.log.Warn().Int("skipped", len(summary.Skipped)).Msg("Holdings without quotes left out of totals")
	}
	return summary, nil
}

// TradesReport summarises trades closed on date's UTC day
func (s *Service) TradesReport(ctx context.Context, date time.Time) (TradesSummary, error) {
	trades, err := s.ledger.ListTradesForDate(ctx, date)
	if err != nil {
		return TradesSummary{}, fmt.Errorf("failed to load trades: %w", err)
	}
	return s.calc.Trades(trades), nil
}
