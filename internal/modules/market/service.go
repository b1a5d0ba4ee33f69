package market

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/rs/zerolog"
)

// Service fetches history and applies the analytics in this package
type Service struct {
	source  domain.MarketDataSource
	taxRate float64
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a market analytics service
func NewService(source domain.MarketDataSource, taxRate float64, log zerolog.Logger) *Service {
	return &Service{
		source:  source,
		taxRate: taxRate,
		now:     time.Now,
		log:     log.With().Str("service", "market").Logger(),
	}
}

// WithClock overrides the clock used for leaderboard windows
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

func (s *Service) history(ctx context.Context, item string, period domain.Period) ([]domain.PricePoint, error) {
	if item == "" {
		return nil, fmt.Errorf("%w: item is required", domain.ErrInvalidInput)
	}
	points, err := s.source.GetHistory(ctx, item, period)
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Card returns the dashboard card for an item
func (s *Service) Card(ctx context.Context, item string, period domain.Period) (*Card, error) {
	points, err := s.history(ctx, item, period)
	if err != nil {
		return nil, err
	}
	card, err := BuildCard(item, points, s.taxRate)
	if err != nil {
		return nil, err
	}
	if card.Alert != AlertNone {
		s.log.Info().
			Str("item", item).
			Str("alert", string(card.Alert)).
			Float64("deviation_pct", card.DeviationPct).
			Msg("Margin alert")
	}
	return card, nil
}

// Bollinger returns rolling bands for an item's sell price
func (s *Service) Bollinger(ctx context.Context, item string, period domain.Period, window int, k float64) ([]BandPoint, error) {
	points, err := s.history(ctx, item, period)
	if err != nil {
		return nil, err
	}
	return Bollinger(points, window, k), nil
}

// Forecast extrapolates an item's sell price trend
func (s *Service) Forecast(ctx context.Context, item string, period domain.Period, hours int) (*ForecastResult, error) {
	points, err := s.history(ctx, item, period)
	if err != nil {
		return nil, err
	}
	return Forecast(points, hours)
}

// Recommend evaluates an item's latest sell price
func (s *Service) Recommend(ctx context.Context, item string, period domain.Period) (*Recommendation, error) {
	points, err := s.history(ctx, item, period)
	if err != nil {
		return nil, err
	}
	return Recommend(points)
}

// Leaderboard ranks players by volume traded within window before now
func (s *Service) Leaderboard(ctx context.Context, players []string, window time.Duration, limit int) (*Leaderboard, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: at least one player is required", domain.ErrInvalidInput)
	}
	if window <= 0 {
		window = DefaultLeaderboardWindow
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	since := s.now().Add(-window)
	orders, failed := fetchOrders(ctx, s.source, players)
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: orders unavailable for all %d players", domain.ErrDataUnavailable, len(players))
	}

	entries, skipped := RankPlayers(orders, since, limit)
	if skipped > 0 {
		s.log.Warn().Int("skipped", skipped).Msg("Skipped orders with unparseable timestamps")
	}

	board := &Leaderboard{
		Since:   since,
		Entries: entries,
		Skipped: skipped,
	}
	if len(failed) > 0 {
		board.Failed = failed
	}
	return board, nil
}
