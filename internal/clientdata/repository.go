// Package clientdata provides persistent caching for market data responses.
// Entries are msgpack blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	TablePriceHistory = "price_history"
	TablePlayerOrders = "player_orders"
)

// AllTables lists all cache tables for cleanup operations.
var AllTables = []string{
	TablePriceHistory,
	TablePlayerOrders,
}

// validTables prevents SQL injection through table names.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Entry describes a cached row without its payload
type Entry struct {
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Stale reports whether the entry is past its expiry at now
func (e Entry) Stale(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock replaces the repository clock (tests)
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store encodes value and saves it with expiration = now + ttl.
func (r *Repository) Store(ctx context.Context, table, key string, value interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	now := r.now()
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (cache_key, data, fetched_at, expires_at) VALUES (?, ?, ?, ?)",
		table,
	)
	if _, err := r.db.ExecContext(ctx, query, key, data, now.Unix(), now.Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh decodes the entry into dst only if it has not expired.
// Returns ok=false when the key is missing or stale.
func (r *Repository) GetIfFresh(ctx context.Context, table, key string, dst interface{}) (bool, error) {
	entry, found, err := r.Get(ctx, table, key, dst)
	if err != nil || !found {
		return false, err
	}
	return !entry.Stale(r.now()), nil
}

// Get decodes the entry into dst regardless of expiration.
// Stale data is the fallback when the upstream fails.
func (r *Repository) Get(ctx context.Context, table, key string, dst interface{}) (Entry, bool, error) {
	if err := validateTable(table); err != nil {
		return Entry{}, false, err
	}

	query := fmt.Sprintf("SELECT data, fetched_at, expires_at FROM %s WHERE cache_key = ?", table)

	var (
		data               []byte
		fetchedAt, expires int64
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&data, &fetchedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(data, dst); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry %s/%s: %w", table, key, err)
	}

	return Entry{
		FetchedAt: time.Unix(fetchedAt, 0).UTC(),
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}, true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", table)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// DeleteExpired removes rows that expired more than grace ago.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(ctx context.Context, table string, grace time.Duration) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-grace).Unix()
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// DeleteAllExpired removes expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) DeleteAllExpired(ctx context.Context, grace time.Duration) (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(ctx, table, grace)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}
