package scheduler

import (
	"github.com/rs/zerolog"
)

// DefaultWALFrameThreshold is the WAL size in frames above which the log is truncated
const DefaultWALFrameThreshold = 1000

// WALCheckpointJob monitors WAL growth and truncates large logs
type WALCheckpointJob struct {
	databases []Checkpointer
	threshold int
	log       zerolog.Logger
}

// NewWALCheckpointJob creates a new WAL checkpoint job
func NewWALCheckpointJob(log zerolog.Logger, databases ...Checkpointer) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		threshold: DefaultWALFrameThreshold,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checks every database and truncates WALs above the threshold
func (j *WALCheckpointJob) Run() error {
	checked, truncated := 0, 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		frames, err := db.WALFrames()
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}
		checked++

		if frames <= j.threshold {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Msg("WAL checkpoint status OK")
			continue
		}

		j.log.Warn().
			Str("database", db.Name()).
			Int("wal_frames", frames).
			Msg("WAL file is large, truncating")
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			continue
		}
		truncated++
	}

	j.log.Info().
		Int("checked", checked).
		Int("truncated", truncated).
		Msg("WAL checkpoint check completed")

	return nil
}
