package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes long-expired entries from all cache tables.
type CleanupJob struct {
	repo    *Repository
	log     zerolog.Logger
	grace   time.Duration
	timeout time.Duration
}

// NewCleanupJob creates a new cache cleanup job. Entries survive grace past expiry.
func NewCleanupJob(repo *Repository, grace time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:    repo,
		log:     log.With().Str("job", "cache_cleanup").Logger(),
		grace:   grace,
		timeout: time.Minute,
	}
}

// Run removes expired entries and logs per-table counts.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.repo.DeleteAllExpired(ctx, j.grace)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return err
	}

	var totalDeleted int64
	for table, count := range results {
		if count > 0 {
			j.log.Info().
				Str("table", table).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	if totalDeleted > 0 {
		j.log.Info().Int64("total_deleted", totalDeleted).Msg("Cache cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
