package scheduler

import (
	"context"

	"github.com/aristath/bazaar-tracker/internal/database"
	"github.com/aristath/bazaar-tracker/internal/domain"
)

// HistoryRefresher refetches an item's history into the cache
type HistoryRefresher interface {
	Refresh(ctx context.Context, item string, period domain.Period) (int, error)
}

// Checkpointer is a database whose WAL can be inspected and truncated
type Checkpointer interface {
	Name() string
	WALFrames() (int, error)
	WALCheckpoint(mode string) error
}

var _ Checkpointer = (*database.DB)(nil)
