// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/bazaar-tracker/internal/clientdata"
	"github.com/aristath/bazaar-tracker/internal/clients/coflnet"
	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/modules/pnl"
	"github.com/aristath/bazaar-tracker/internal/timeutil"
	"github.com/aristath/bazaar-tracker/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultWatchlist is the set of items synced and shown by default
var DefaultWatchlist = []string{
	"BOOSTER_COOKIE",
	"RECOMBOBULATOR_3000",
	"ENCHANTED_SEA_LUMIES",
	"AGATHA_COUPON",
	"KISMET_FEATHER",
	"FIGSTONE",
	"SUMMONING_EYE",
}

// Config holds application configuration
type Config struct {
	DataDir   string        `yaml:"data_dir"` // Base directory for all databases, always absolute
	Port      int           `yaml:"port"`
	LogLevel  string        `yaml:"log_level"`
	LogPretty bool          `yaml:"log_pretty"`
	Market    MarketConfig  `yaml:"market"`
	TaxRate   float64       `yaml:"tax_rate"`
	Optimizer OptimizerConf `yaml:"optimizer"`
	Schedule  ScheduleConf  `yaml:"schedule"`
	Backup    BackupConfig  `yaml:"backup"`
}

// MarketConfig configures the upstream bazaar API
type MarketConfig struct {
	BaseURL      string        `yaml:"base_url"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	TZOffset     time.Duration `yaml:"tz_offset"`
	QuotePeriod  string        `yaml:"quote_period"`
	Watchlist    []string      `yaml:"watchlist"`
	CacheGrace   time.Duration `yaml:"cache_grace"`
	SyncPeriods  []string      `yaml:"sync_periods"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// OptimizerConf holds allocation defaults
type OptimizerConf struct {
	RiskAversion  float64       `yaml:"risk_aversion"`
	Period        string        `yaml:"period"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxIterations int           `yaml:"max_iterations"`
}

// ScheduleConf holds cron expressions (with seconds) for background jobs.
// An empty expression disables the job.
type ScheduleConf struct {
	PriceSync     string `yaml:"price_sync"`
	CacheCleanup  string `yaml:"cache_cleanup"`
	WALCheckpoint string `yaml:"wal_checkpoint"`
	Backup        string `yaml:"backup"`
}

// BackupConfig configures ledger snapshots and the optional S3 upload
type BackupConfig struct {
	Dir            string `yaml:"dir"`
	RetentionCount int    `yaml:"retention_count"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
	S3Region       string `yaml:"s3_region"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
}

// UploadEnabled reports whether snapshots are pushed to S3
func (b BackupConfig) UploadEnabled() bool {
	return b.S3Bucket != ""
}

// Defaults returns the built-in configuration before any overlay
func Defaults() *Config {
	return &Config{
		DataDir:  "./data",
		Port:     8001,
		LogLevel: "info",
		Market: MarketConfig{
			BaseURL:      coflnet.DefaultBaseURL,
			HTTPTimeout:  15 * time.Second,
			TZOffset:     timeutil.DefaultOffset,
			QuotePeriod:  string(domain.PeriodHour),
			Watchlist:    append([]string(nil), DefaultWatchlist...),
			CacheGrace:   clientdata.StaleGrace,
			SyncPeriods:  []string{string(domain.PeriodHour), string(domain.PeriodDay)},
			FetchTimeout: 2 * time.Minute,
		},
		TaxRate: pnl.DefaultTaxRate,
		Optimizer: OptimizerConf{
			RiskAversion:  0.5,
			Period:        string(domain.PeriodDay),
			Timeout:       10 * time.Second,
			MaxIterations: 2000,
		},
		Schedule: ScheduleConf{
			PriceSync:     "0 */5 * * * *",
			CacheCleanup:  "0 30 3 * * *",
			WALCheckpoint: "0 0 * * * *",
			Backup:        "0 0 4 * * *",
		},
		Backup: BackupConfig{
			RetentionCount: 7,
			S3Prefix:       "bazaar-tracker",
			S3Region:       "auto",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// BAZAAR_CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Defaults()
	if path := getEnv("BAZAAR_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	cfg.DataDir = absDataDir
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = filepath.Join(cfg.DataDir, "backups")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirs creates the data and backup directories
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.Backup.Dir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("BAZAAR_DATA_DIR", c.DataDir)
	c.Port = getEnvAsInt("BAZAAR_PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPretty = getEnvAsBool("LOG_PRETTY", c.LogPretty)

	c.Market.BaseURL = getEnv("BAZAAR_API_BASE_URL", c.Market.BaseURL)
	c.Market.HTTPTimeout = getEnvAsDuration("BAZAAR_HTTP_TIMEOUT", c.Market.HTTPTimeout)
	c.Market.QuotePeriod = getEnv("BAZAAR_QUOTE_PERIOD", c.Market.QuotePeriod)
	c.Market.CacheGrace = getEnvAsDuration("BAZAAR_CACHE_GRACE", c.Market.CacheGrace)
	if raw := getEnv("BAZAAR_TZ_OFFSET", ""); raw != "" {
		offset, err := timeutil.ParseOffset(raw)
		if err != nil {
			return fmt.Errorf("invalid BAZAAR_TZ_OFFSET: %w", err)
		}
		c.Market.TZOffset = offset
	}
	if raw := getEnv("BAZAAR_WATCHLIST", ""); raw != "" {
		c.Market.Watchlist = utils.ParseCSV(raw)
	}

	c.TaxRate = getEnvAsFloat("BAZAAR_TAX_RATE", c.TaxRate)

	c.Optimizer.RiskAversion = getEnvAsFloat("BAZAAR_RISK_AVERSION", c.Optimizer.RiskAversion)
	c.Optimizer.Period = getEnv("BAZAAR_OPTIMIZER_PERIOD", c.Optimizer.Period)
	c.Optimizer.Timeout = getEnvAsDuration("BAZAAR_OPTIMIZER_TIMEOUT", c.Optimizer.Timeout)
	c.Optimizer.MaxIterations = getEnvAsInt("BAZAAR_OPTIMIZER_MAX_ITERATIONS", c.Optimizer.MaxIterations)

	c.Schedule.PriceSync = getEnv("BAZAAR_SCHEDULE_PRICE_SYNC", c.Schedule.PriceSync)
	c.Schedule.CacheCleanup = getEnv("BAZAAR_SCHEDULE_CACHE_CLEANUP", c.Schedule.CacheCleanup)
	c.Schedule.WALCheckpoint = getEnv("BAZAAR_SCHEDULE_WAL_CHECKPOINT", c.Schedule.WALCheckpoint)
	c.Schedule.Backup = getEnv("BAZAAR_SCHEDULE_BACKUP", c.Schedule.Backup)

	c.Backup.Dir = getEnv("BAZAAR_BACKUP_DIR", c.Backup.Dir)
	c.Backup.RetentionCount = getEnvAsInt("BAZAAR_BACKUP_RETENTION", c.Backup.RetentionCount)
	c.Backup.S3Bucket = getEnv("BAZAAR_S3_BUCKET", c.Backup.S3Bucket)
	c.Backup.S3Prefix = getEnv("BAZAAR_S3_PREFIX", c.Backup.S3Prefix)
	c.Backup.S3Region = getEnv("BAZAAR_S3_REGION", c.Backup.S3Region)
	c.Backup.S3Endpoint = getEnv("BAZAAR_S3_ENDPOINT", c.Backup.S3Endpoint)
	c.Backup.S3AccessKey = getEnv("BAZAAR_S3_ACCESS_KEY", c.Backup.S3AccessKey)
	c.Backup.S3SecretKey = getEnv("BAZAAR_S3_SECRET_KEY", c.Backup.S3SecretKey)
	return nil
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("tax rate %v must be in [0, 1)", c.TaxRate)
	}
	if c.Optimizer.RiskAversion < 0 || c.Optimizer.RiskAversion > 1 {
		return fmt.Errorf("risk aversion %v must be in [0, 1]", c.Optimizer.RiskAversion)
	}
	if p := domain.Period(c.Optimizer.Period); p != domain.PeriodDay && p != domain.PeriodWeek {
		return fmt.Errorf("optimizer period %q must be day or week", c.Optimizer.Period)
	}
	if _, err := domain.ParsePeriod(c.Market.QuotePeriod); err != nil {
		return fmt.Errorf("quote period: %w", err)
	}
	for _, p := range c.Market.SyncPeriods {
		if _, err := domain.ParsePeriod(p); err != nil {
			return fmt.Errorf("sync period: %w", err)
		}
	}
	if c.Market.BaseURL == "" {
		return fmt.Errorf("market API base URL is required")
	}
	if c.Market.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.Optimizer.Timeout <= 0 {
		return fmt.Errorf("optimizer timeout must be positive")
	}
	if c.Backup.RetentionCount < 1 {
		return fmt.Errorf("backup retention must keep at least one snapshot")
	}
	if c.Backup.UploadEnabled() && (c.Backup.S3AccessKey == "") != (c.Backup.S3SecretKey == "") {
		return fmt.Errorf("S3 access key and secret key must be set together")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
