// Package reliability snapshots the ledger and keeps local and remote backups.
package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "ledger-"
	backupSuffix     = ".db.gz"
	backupTimeLayout = "20060102-150405.000"
)

// Snapshotter writes a consistent copy of a database to a new file
type Snapshotter interface {
	Name() string
	SnapshotTo(ctx context.Context, dest string) error
}

// BackupInfo describes a local backup archive
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupResult reports a finished backup
type BackupResult struct {
	Path      string        `json:"path"`
	ObjectKey string        `json:"object_key,omitempty"`
	SizeBytes int64         `json:"size_bytes"`
	Checksum  string        `json:"checksum"`
	Uploaded  bool          `json:"uploaded"`
	Removed   int           `json:"removed"`
	Duration  time.Duration `json:"duration"`
}

// BackupService snapshots the ledger into gzip archives, optionally uploads
// them and prunes old archives beyond the retention count.
type BackupService struct {
	db        Snapshotter
	dir       string
	retention int
	store     ObjectStore // nil disables upload
	prefix    string
	timeout   time.Duration
	events    *events.Manager
	log       zerolog.Logger
	now       func() time.Time

	mu sync.Mutex // one backup at a time
}

// NewBackupService creates a new backup service
func NewBackupService(
	db Snapshotter,
	dir string,
	retention int,
	store ObjectStore,
	prefix string,
	eventManager *events.Manager,
	log zerolog.Logger,
) *BackupService {
	if retention < 1 {
		retention = 1
	}
	return &BackupService{
		db:        db,
		dir:       dir,
		retention: retention,
		store:     store,
		prefix:    strings.Trim(prefix, "/"),
		timeout:   5 * time.Minute,
		events:    eventManager,
		log:       log.With().Str("service", "backup").Logger(),
		now:       time.Now,
	}
}

// WithClock overrides the time source used for archive names
func (s *BackupService) WithClock(now func() time.Time) *BackupService {
	s.now = now
	return s
}

// Name returns the job name
func (s *BackupService) Name() string {
	return "ledger_backup"
}

// Run creates a backup with the service timeout
func (s *BackupService) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.CreateBackup(ctx)
	return err
}

// CreateBackup snapshots the database, compresses it and applies retention.
// An upload failure is returned after the local archive has been kept.
func (s *BackupService) CreateBackup(ctx context.Context) (*BackupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	filename := backupPrefix + start.UTC().Format(backupTimeLayout) + backupSuffix
	archivePath := filepath.Join(s.dir, filename)
	stagingPath := filepath.Join(s.dir, ".staging-"+strings.TrimSuffix(filename, ".gz"))
	defer os.Remove(stagingPath)

	if err := s.db.SnapshotTo(ctx, stagingPath); err != nil {
		s.events.EmitError("reliability", err, "ledger snapshot")
		return nil, err
	}

	size, checksum, err := compressFile(stagingPath, archivePath)
	if err != nil {
		_ = os.Remove(archivePath)
		s.events.EmitError("reliability", err, "ledger backup compression")
		return nil, err
	}

	result := &BackupResult{
		Path:      archivePath,
		SizeBytes: size,
		Checksum:  checksum,
	}

	var uploadErr error
	if s.store != nil {
		result.ObjectKey = s.objectKey(filename)
		if uploadErr = s.upload(ctx, archivePath, result.ObjectKey); uploadErr == nil {
			result.Uploaded = true
		}
	}

	removed, err := s.pruneLocal()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to prune local backups")
	}
	result.Removed = removed
	if result.Uploaded {
		if err := s.pruneRemote(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to prune remote backups")
		}
	}
	result.Duration = s.now().Sub(start)

	s.events.Emit("reliability", &events.BackupCompletedData{
		Path:      result.Path,
		ObjectKey: result.ObjectKey,
		SizeBytes: result.SizeBytes,
		Uploaded:  result.Uploaded,
	})

	if uploadErr != nil {
		s.events.EmitError("reliability", uploadErr, "ledger backup upload")
		return result, uploadErr
	}

	s.log.Info().
		Str("archive", filename).
		Int64("size_bytes", size).
		Bool("uploaded", result.Uploaded).
		Int("removed", removed).
		Msg("Ledger backup completed")
	return result, nil
}

// ListBackups returns local archives, newest first
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Path:      filepath.Join(s.dir, entry.Name()),
			Timestamp: ts,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

func (s *BackupService) upload(ctx context.Context, archivePath, key string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := s.store.Upload(ctx, key, f); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to upload backup")
		return err
	}
	return nil
}

func (s *BackupService) pruneLocal() (int, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, b := range backups[min(s.retention, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", b.Filename, err)
		}
		removed++
	}
	return removed, nil
}

func (s *BackupService) pruneRemote(ctx context.Context) error {
	objects, err := s.store.List(ctx, s.objectKey(backupPrefix))
	if err != nil {
		return err
	}

	type stamped struct {
		key string
		ts  time.Time
	}
	var archives []stamped
	for _, obj := range objects {
		if ts, ok := parseBackupName(path.Base(obj.Key)); ok {
			archives = append(archives, stamped{obj.Key, ts})
		}
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].ts.After(archives[j].ts) })

	for _, a := range archives[min(s.retention, len(archives)):] {
		if err := s.store.Delete(ctx, a.key); err != nil {
			return err
		}
	}
	return nil
}

func (s *BackupService) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	ts, err := time.Parse(backupTimeLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// compressFile gzips src into dst and returns the archive size and sha256
func compressFile(src, dst string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	hash := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, hash))
	if _, err := io.Copy(gz, in); err != nil {
		return 0, "", fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		return 0, "", fmt.Errorf("failed to sync archive: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("failed to stat archive: %w", err)
	}
	return info.Size(), hex.EncodeToString(hash.Sum(nil)), nil
}
