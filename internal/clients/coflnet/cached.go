package coflnet

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/bazaar-tracker/internal/clientdata"
	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedSource decorates a MarketDataSource with the persistent cache.
// Fresh entries are served without a fetch; on upstream failure stale entries are
// served instead of the error. Concurrent fetches of the same key are coalesced.
type CachedSource struct {
	upstream domain.MarketDataSource
	repo     *clientdata.Repository
	group    singleflight.Group
	log      zerolog.Logger
}

// NewCachedSource creates a cached market data source
func NewCachedSource(upstream domain.MarketDataSource, repo *clientdata.Repository, log zerolog.Logger) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		repo:     repo,
		log:      log.With().Str("client", "coflnet_cache").Logger(),
	}
}

func historyKey(item string, period domain.Period) string {
	return item + "|" + string(period)
}

func historyTTL(period domain.Period) time.Duration {
	switch period {
	case domain.PeriodWeek:
		return clientdata.TTLHistoryWeek
	case domain.PeriodDay:
		return clientdata.TTLHistoryDay
	default:
		return clientdata.TTLHistoryHour
	}
}

// GetHistory returns cached history when fresh, otherwise fetches it
func (s *CachedSource) GetHistory(ctx context.Context, item string, period domain.Period) ([]domain.PricePoint, error) {
	key := historyKey(item, period)

	var cached []domain.PricePoint
	if fresh, err := s.repo.GetIfFresh(ctx, clientdata.TablePriceHistory, key, &cached); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else if fresh {
		s.log.Debug().Str("key", key).Int("points", len(cached)).Msg("Cache hit")
		return cached, nil
	}

	v, err, _ := s.group.Do("history:"+key, func() (interface{}, error) {
		points, err := s.upstream.GetHistory(ctx, item, period)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Store(ctx, clientdata.TablePriceHistory, key, points, historyTTL(period)); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache history")
		}
		return points, nil
	})
	if err != nil {
		var stale []domain.PricePoint
		if entry, found, cerr := s.repo.Get(ctx, clientdata.TablePriceHistory, key, &stale); cerr == nil && found {
			s.log.Warn().
				Err(err).
				Str("key", key).
				Time("fetched_at", entry.FetchedAt).
				Msg("Upstream failed, using stale cached history")
			return stale, nil
		}
		return nil, err
	}

	return v.([]domain.PricePoint), nil
}

// GetPlayerOrders returns cached orders when fresh, otherwise fetches them
func (s *CachedSource) GetPlayerOrders(ctx context.Context, player string) ([]domain.PlayerOrder, error) {
	var cached []domain.PlayerOrder
	if fresh, err := s.repo.GetIfFresh(ctx, clientdata.TablePlayerOrders, player, &cached); err != nil {
		s.log.Warn().Err(err).Str("player", player).Msg("Cache read failed")
	} else if fresh {
		return cached, nil
	}

	v, err, _ := s.group.Do("orders:"+player, func() (interface{}, error) {
		orders, err := s.upstream.GetPlayerOrders(ctx, player)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Store(ctx, clientdata.TablePlayerOrders, player, orders, clientdata.TTLPlayerOrders); err != nil {
			s.log.Warn().Err(err).Str("player", player).Msg("Failed to cache orders")
		}
		return orders, nil
	})
	if err != nil {
		var stale []domain.PlayerOrder
		if _, found, cerr := s.repo.Get(ctx, clientdata.TablePlayerOrders, player, &stale); cerr == nil && found {
			s.log.Warn().Err(err).Str("player", player).Msg("Upstream failed, using stale cached orders")
			return stale, nil
		}
		return nil, err
	}

	return v.([]domain.PlayerOrder), nil
}

// Refresh fetches the item's history bypassing freshness checks and stores it
func (s *CachedSource) Refresh(ctx context.Context, item string, period domain.Period) (int, error) {
	points, err := s.upstream.GetHistory(ctx, item, period)
	if err != nil {
		return 0, err
	}
	if err := s.repo.Store(ctx, clientdata.TablePriceHistory, historyKey(item, period), points, historyTTL(period)); err != nil {
		return 0, fmt.Errorf("failed to cache history %s: %w", item, err)
	}
	return len(points), nil
}
