package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func (f *fakeRefresher) Refresh(_ context.Context, item string, period domain.Period) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, item+"/"+string(period))
	if f.failing[item] {
		return 0, errors.New("upstream down")
	}
	return 10, nil
}

func TestPriceSyncJob_Run(t *testing.T) {
	refresher := &fakeRefresher{failing: map[string]bool{"KISMET_FEATHER": true}}
	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe(4, events.PricesSynced)
	defer unsubscribe()

	job := NewPriceSyncJob(
		refresher,
		[]string{"BOOSTER_COOKIE", "KISMET_FEATHER"},
		[]domain.Period{domain.PeriodHour, domain.PeriodDay},
		time.Second,
		events.NewManager(bus, zerolog.Nop()),
		zerolog.Nop(),
	)
	assert.Equal(t, "price_sync", job.Name())

	require.NoError(t, job.Run())
	assert.Len(t, refresher.calls, 4)

	select {
	case ev := <-ch:
		data, ok := ev.Data.(*events.PricesSyncedData)
		require.True(t, ok)
		assert.Equal(t, 2, data.Items)
		assert.Equal(t, 20, data.Points)
		assert.Equal(t, []string{"KISMET_FEATHER/day", "KISMET_FEATHER/hour"}, data.Failed)
	default:
		t.Fatal("expected a prices synced event")
	}
}

func TestPriceSyncJob_AllFailed(t *testing.T) {
	refresher := &fakeRefresher{failing: map[string]bool{"A": true}}
	job := NewPriceSyncJob(refresher, []string{"A"}, []domain.Period{domain.PeriodHour}, 0, nil, zerolog.Nop())

	err := job.Run()
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestPriceSyncJob_Empty(t *testing.T) {
	refresher := &fakeRefresher{}
	job := NewPriceSyncJob(refresher, nil, []domain.Period{domain.PeriodHour}, 0, nil, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, refresher.calls)
}
