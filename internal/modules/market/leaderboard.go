package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Leaderboard defaults
const (
	DefaultLeaderboardWindow = 24 * time.Hour
	DefaultLeaderboardLimit  = 5
	maxConcurrentFetches     = 4
)

// LeaderboardEntry is one player's traded volume inside the window
type LeaderboardEntry struct {
	Player string  `json:"player"`
	Volume float64 `json:"volume"`
	Orders int     `json:"orders"`
}

// Leaderboard ranks players by traded volume
type Leaderboard struct {
	Since   time.Time          `json:"since"`
	Entries []LeaderboardEntry `json:"entries"`
	// Skipped counts orders whose timestamp could not be parsed
	Skipped int               `json:"skipped"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// RankPlayers sums Σ quantity×price of orders at or after since, sorted by
// volume descending (ties by name) and truncated to limit. limit <= 0 keeps all.
// Orders with an unparseable timestamp are counted in the second return.
func RankPlayers(orders map[string][]domain.PlayerOrder, since time.Time, limit int) ([]LeaderboardEntry, int) {
	entries := make([]LeaderboardEntry, 0, len(orders))
	skipped := 0
	for player, list := range orders {
		entry := LeaderboardEntry{Player: player}
		for _, o := range list {
			if !o.TimestampValid {
				skipped++
				continue
			}
			if o.Timestamp.Before(since) {
				continue
			}
			entry.Volume += o.Value()
			entry.Orders++
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Volume != entries[j].Volume {
			return entries[i].Volume > entries[j].Volume
		}
		return entries[i].Player < entries[j].Player
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, skipped
}

// fetchOrders loads orders for each distinct player concurrently. Players
// whose fetch fails are reported in the second map and left out of the first.
func fetchOrders(ctx context.Context, source domain.MarketDataSource, players []string) (map[string][]domain.PlayerOrder, map[string]string) {
	var mu sync.Mutex
	orders := make(map[string][]domain.PlayerOrder, len(players))
	failed := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, player := range players {
		g.Go(func() error {
			list, err := source.GetPlayerOrders(gctx, player)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[player] = err.Error()
				return nil
			}
			orders[player] = list
			return nil
		})
	}
	_ = g.Wait()

	return orders, failed
}

// ParsePlayers splits a comma-separated player list, trimming blanks and repeats
func ParsePlayers(raw string) []string {
	return utils.Unique(utils.ParseCSV(raw))
}
