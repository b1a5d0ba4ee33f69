package coflnet

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/bazaar-tracker/internal/clientdata"
	"github.com/aristath/bazaar-tracker/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cacheSchema = `
CREATE TABLE price_history (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE player_orders (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
`

type stubSource struct {
	mu      sync.Mutex
	calls   int32
	fail    bool
	history []domain.PricePoint
	orders  []domain.PlayerOrder
	delay   time.Duration
}

func (s *stubSource) GetHistory(ctx context.Context, item string, period domain.Period) ([]domain.PricePoint, error) {
	atomic.AddInt32(&s.calls, 1)
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("%w: boom", domain.ErrDataUnavailable)
	}
	return s.history, nil
}

func (s *stubSource) GetPlayerOrders(ctx context.Context, player string) ([]domain.PlayerOrder, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("%w: boom", domain.ErrDataUnavailable)
	}
	return s.orders, nil
}

func setupCache(t *testing.T) (*clientdata.Repository, *sql.DB) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(cacheSchema)
	require.NoError(t, err)
	return clientdata.NewRepository(db), db
}

func samplePoints() []domain.PricePoint {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.PricePoint{
		{Timestamp: base, Buy: 10, Sell: 9},
		{Timestamp: base.Add(time.Hour), Buy: 11, Sell: 10},
	}
}

func TestCachedSource_ServesFreshFromCache(t *testing.T) {
	repo, _ := setupCache(t)
	upstream := &stubSource{history: samplePoints()}
	src := NewCachedSource(upstream, repo, zerolog.Nop())
	ctx := context.Background()

	first, err := src.GetHistory(ctx, "A", domain.PeriodDay)
	require.NoError(t, err)
	second, err := src.GetHistory(ctx, "A", domain.PeriodDay)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&upstream.calls))
	require.Len(t, second, 2)
	assert.Equal(t, first[1].Sell, second[1].Sell)
}

func TestCachedSource_StaleFallback(t *testing.T) {
	repo, _ := setupCache(t)
	clock := time.Now()
	repo.WithClock(func() time.Time { return clock })

	upstream := &stubSource{history: samplePoints()}
	src := NewCachedSource(upstream, repo, zerolog.Nop())
	ctx := context.Background()

	_, err := src.GetHistory(ctx, "A", domain.PeriodHour)
	require.NoError(t, err)

	clock = clock.Add(24 * time.Hour)
	upstream.fail = true

	points, err := src.GetHistory(ctx, "A", domain.PeriodHour)
	require.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&upstream.calls))
}

func TestCachedSource_NoCacheNoData(t *testing.T) {
	repo, _ := setupCache(t)
	src := NewCachedSource(&stubSource{fail: true}, repo, zerolog.Nop())

	_, err := src.GetHistory(context.Background(), "A", domain.PeriodHour)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	_, err = src.GetPlayerOrders(context.Background(), "p")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestCachedSource_CoalescesConcurrentFetches(t *testing.T) {
	repo, _ := setupCache(t)
	upstream := &stubSource{history: samplePoints(), delay: 50 * time.Millisecond}
	src := NewCachedSource(upstream, repo, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.GetHistory(context.Background(), "A", domain.PeriodWeek)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, atomic.LoadInt32(&upstream.calls), int32(8))
}

func TestCachedSource_Refresh(t *testing.T) {
	repo, _ := setupCache(t)
	upstream := &stubSource{history: samplePoints()}
	src := NewCachedSource(upstream, repo, zerolog.Nop())

	n, err := src.Refresh(context.Background(), "A", domain.PeriodHour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = src.GetHistory(context.Background(), "A", domain.PeriodHour)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&upstream.calls))
}
