package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/aristath/bazaar-tracker/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentRefreshes = 3

// PriceSyncJob refreshes cached history for every watched item and period
type PriceSyncJob struct {
	refresher HistoryRefresher
	items     []string
	periods   []domain.Period
	timeout   time.Duration
	events    *events.Manager
	log       zerolog.Logger
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(
	refresher HistoryRefresher,
	items []string,
	periods []domain.Period,
	timeout time.Duration,
	eventManager *events.Manager,
	log zerolog.Logger,
) *PriceSyncJob {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PriceSyncJob{
		refresher: refresher,
		items:     items,
		periods:   periods,
		timeout:   timeout,
		events:    eventManager,
		log:       log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run refreshes all item/period pairs. A failed pair is logged and reported
// in the event; the job fails only when nothing could be refreshed.
func (j *PriceSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.Sync(ctx)
}

// Sync performs one refresh pass bounded by ctx
func (j *PriceSyncJob) Sync(ctx context.Context) error {
	if len(j.items) == 0 || len(j.periods) == 0 {
		j.log.Debug().Msg("Nothing to sync")
		return nil
	}

	stop := utils.OperationTimer(j.Name(), 0, j.log)
	defer stop()

	var (
		mu     sync.Mutex
		points int
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRefreshes)
	for _, item := range j.items {
		for _, period := range j.periods {
			g.Go(func() error {
				n, err := j.refresher.Refresh(gctx, item, period)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					j.log.Warn().
						Err(err).
						Str("item", item).
						Str("period", string(period)).
						Msg("Failed to refresh history")
					failed = append(failed, item+"/"+string(period))
					return nil
				}
				points += n
				return nil
			})
		}
	}
	_ = g.Wait()

	total := len(j.items) * len(j.periods)
	sort.Strings(failed)

	j.events.Emit("scheduler", &events.PricesSyncedData{
		Items:  total - len(failed),
		Points: points,
		Failed: failed,
	})

	if len(failed) == total {
		return fmt.Errorf("%w: all %d history refreshes failed", domain.ErrDataUnavailable, total)
	}

	j.log.Info().
		Int("refreshed", total-len(failed)).
		Int("failed", len(failed)).
		Int("points", points).
		Msg("Price sync completed")
	return nil
}
