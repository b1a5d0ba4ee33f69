package clientdata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE price_history (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE player_orders (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
`

type cachedPoint struct {
	Item  string    `msgpack:"item"`
	Price float64   `msgpack:"price"`
	At    time.Time `msgpack:"at"`
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStoreAndGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewRepository(db).WithClock(clock.Now)
	ctx := context.Background()

	in := []cachedPoint{{Item: "BOOSTER_COOKIE", Price: 2.5e6, At: clock.t}}
	require.NoError(t, repo.Store(ctx, TablePriceHistory, "BOOSTER_COOKIE|hour", in, time.Minute))

	var out []cachedPoint
	fresh, err := repo.GetIfFresh(ctx, TablePriceHistory, "BOOSTER_COOKIE|hour", &out)
	require.NoError(t, err)
	assert.True(t, fresh)
	require.Len(t, out, 1)
	assert.Equal(t, "BOOSTER_COOKIE", out[0].Item)
	assert.Equal(t, 2.5e6, out[0].Price)
	assert.True(t, in[0].At.Equal(out[0].At))
}

func TestGetIfFresh_Expired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewRepository(db).WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TablePriceHistory, "k", []cachedPoint{{Item: "A"}}, time.Minute))
	clock.Advance(2 * time.Minute)

	var out []cachedPoint
	fresh, err := repo.GetIfFresh(ctx, TablePriceHistory, "k", &out)
	require.NoError(t, err)
	assert.False(t, fresh)

	// Stale data is still readable through Get
	var stale []cachedPoint
	entry, found, err := repo.Get(ctx, TablePriceHistory, "k", &stale)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, entry.Stale(clock.Now()))
	require.Len(t, stale, 1)
	assert.Equal(t, "A", stale[0].Item)
}

func TestGet_Missing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	var out []cachedPoint
	_, found, err := repo.Get(context.Background(), TablePlayerOrders, "nobody", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	err := repo.Store(ctx, "portfolio; DROP TABLE sales", "k", 1, time.Minute)
	assert.Error(t, err)

	var out int
	_, _, err = repo.Get(ctx, "unknown", "k", &out)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TablePlayerOrders, "p1", []cachedPoint{}, time.Hour))
	require.NoError(t, repo.Delete(ctx, TablePlayerOrders, "p1"))

	var out []cachedPoint
	_, found, err := repo.Get(ctx, TablePlayerOrders, "p1", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
