package di

import (
	"fmt"

	"github.com/aristath/bazaar-tracker/internal/clientdata"
	"github.com/aristath/bazaar-tracker/internal/config"
	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and registers them with the scheduler.
// Jobs with an empty schedule are registered for manual runs only.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	periods := make([]domain.Period, 0, len(cfg.Market.SyncPeriods))
	for _, raw := range cfg.Market.SyncPeriods {
		p, err := domain.ParsePeriod(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid sync period: %w", err)
		}
		periods = append(periods, p)
	}

	jobs := &JobInstances{
		PriceSync: scheduler.NewPriceSyncJob(
			container.MarketSource,
			cfg.Market.Watchlist,
			periods,
			cfg.Market.FetchTimeout,
			container.EventManager,
			log,
		),
		CacheCleanup:  clientdata.NewCleanupJob(container.CacheRepo, cfg.Market.CacheGrace, log),
		WALCheckpoint: scheduler.NewWALCheckpointJob(log, container.LedgerDB, container.CacheDB),
		Backup:        container.BackupService,
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedule.PriceSync, jobs.PriceSync},
		{cfg.Schedule.CacheCleanup, jobs.CacheCleanup},
		{cfg.Schedule.WALCheckpoint, jobs.WALCheckpoint},
		{cfg.Schedule.Backup, jobs.Backup},
	}
	for _, reg := range registrations {
		if err := container.Scheduler.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	return jobs, nil
}
