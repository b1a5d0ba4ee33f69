package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/bazaar-tracker/internal/clientdata"
	"github.com/aristath/bazaar-tracker/internal/clients/coflnet"
	"github.com/aristath/bazaar-tracker/internal/config"
	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/aristath/bazaar-tracker/internal/modules/ledger"
	"github.com/aristath/bazaar-tracker/internal/modules/market"
	"github.com/aristath/bazaar-tracker/internal/modules/optimization"
	"github.com/aristath/bazaar-tracker/internal/modules/pnl"
	"github.com/aristath/bazaar-tracker/internal/modules/quotes"
	"github.com/aristath/bazaar-tracker/internal/reliability"
	"github.com/aristath/bazaar-tracker/internal/scheduler"
	"github.com/aristath/bazaar-tracker/internal/timeutil"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services on top of the databases
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Market data: upstream client behind the SQLite cache
	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.MarketClient = coflnet.NewClient(
		cfg.Market.BaseURL,
		cfg.Market.HTTPTimeout,
		timeutil.NewNormalizer(cfg.Market.TZOffset),
		log,
	)
	container.MarketSource = coflnet.NewCachedSource(container.MarketClient, container.CacheRepo, log)

	quotePeriod, err := domain.ParsePeriod(cfg.Market.QuotePeriod)
	if err != nil {
		return fmt.Errorf("invalid quote period: %w", err)
	}

	container.LedgerStore = ledger.NewStore(container.LedgerDB.Conn(), container.EventManager, log)
	container.QuoteService = quotes.NewService(container.MarketSource, quotePeriod, log)
	container.PnLService = pnl.NewService(pnl.NewCalculator(cfg.TaxRate), container.LedgerStore, container.QuoteService, log)

	optimizer := optimization.NewMVOptimizer(log)
	if cfg.Optimizer.MaxIterations > 0 {
		optimizer.MaxIterations = cfg.Optimizer.MaxIterations
	}
	container.OptimizationService = optimization.NewService(
		container.MarketSource,
		container.LedgerStore,
		optimizer,
		container.EventManager,
		log,
	)
	container.OptimizationService.SetDefaultTimeout(cfg.Optimizer.Timeout)

	container.MarketService = market.NewService(container.MarketSource, cfg.TaxRate, log)

	var store reliability.ObjectStore
	if cfg.Backup.UploadEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		s3Store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			Endpoint:  cfg.Backup.S3Endpoint,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
		}, log)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to initialize backup upload: %w", err)
		}
		store = s3Store
	}
	container.BackupService = reliability.NewBackupService(
		container.LedgerDB,
		cfg.Backup.Dir,
		cfg.Backup.RetentionCount,
		store,
		cfg.Backup.S3Prefix,
		container.EventManager,
		log,
	)

	container.Scheduler = scheduler.New(log)

	log.Info().
		Bool("backup_upload", store != nil).
		Str("quote_period", string(quotePeriod)).
		Msg("Services initialized")
	return nil
}
