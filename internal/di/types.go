// Package di wires databases, clients, services and jobs into a Container.
package di

import (
	"github.com/aristath/bazaar-tracker/internal/clientdata"
	"github.com/aristath/bazaar-tracker/internal/clients/coflnet"
	"github.com/aristath/bazaar-tracker/internal/database"
	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/aristath/bazaar-tracker/internal/modules/ledger"
	"github.com/aristath/bazaar-tracker/internal/modules/market"
	"github.com/aristath/bazaar-tracker/internal/modules/optimization"
	"github.com/aristath/bazaar-tracker/internal/modules/pnl"
	"github.com/aristath/bazaar-tracker/internal/modules/quotes"
	"github.com/aristath/bazaar-tracker/internal/reliability"
	"github.com/aristath/bazaar-tracker/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and passed to the server and CLI.
type Container struct {
	// Databases
	LedgerDB *database.DB // Holdings and realized trades, fsync on every write
	CacheDB  *database.DB // Refetchable upstream responses

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Clients
	CacheRepo    *clientdata.Repository
	MarketClient *coflnet.Client       // Direct upstream access
	MarketSource *coflnet.CachedSource // Upstream behind the cache, used by services

	// Services
	LedgerStore         *ledger.Store
	QuoteService        *quotes.Service
	PnLService          *pnl.Service
	OptimizationService *optimization.Service
	MarketService       *market.Service
	BackupService       *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the background jobs for manual triggering
type JobInstances struct {
	PriceSync     *scheduler.PriceSyncJob
	CacheCleanup  *clientdata.CleanupJob
	WALCheckpoint *scheduler.WALCheckpointJob
	Backup        *reliability.BackupService
}

// Close closes every database, returning the first error
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.LedgerDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
