package optimization

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/events"
	testingpkg "github.com/aristath/bazaar-tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heldItems []string

func (h heldItems) HeldItems(context.Context) ([]string, error) { return h, nil }

func newTestService(source domain.MarketDataSource, held domain.HeldItemsProvider) (*Service, *events.Bus) {
	bus := events.NewBus()
	svc := NewService(source, held, NewMVOptimizer(zerolog.Nop()), events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	return svc, bus
}

func scenarioSource() *testingpkg.MockMarketDataSource {
	source := testingpkg.NewMockMarketDataSource()
	for item, sells := range testingpkg.ScenarioAB() {
		source.Histories[item] = testingpkg.PricePoints(1, sells...)
	}
	return source
}

func TestAllocate_ScenarioAB(t *testing.T) {
	svc, bus := newTestService(scenarioSource(), nil)
	ch, unsub := bus.Subscribe(1, events.AllocationComputed)
	defer unsub()

	res, err := svc.Allocate(context.Background(), AllocationRequest{
		Items:        []string{"A", "B"},
		Period:       domain.PeriodDay,
		RiskAversion: 1,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 7, res.Observations)
	assert.InDelta(t, 1.0, res.Weights["A"]+res.Weights["B"], 1e-6)
	assert.GreaterOrEqual(t, res.ExpectedVolatility, 0.0)

	// Two-asset minimum variance: w_A = (σ_B² − σ_AB) / (σ_A² + σ_B² − 2σ_AB)
	assert.InDelta(t, 0.8251128923106477, res.Weights["A"], 1e-3)

	ev := <-ch
	assert.Equal(t, res.RunID, ev.Data.(*events.AllocationComputedData).RunID)
}

func TestAllocate_ReturnSeekingPicksBestItem(t *testing.T) {
	svc, _ := newTestService(scenarioSource(), nil)

	for _, lambda := range []float64{0, 0.5} {
		res, err := svc.Allocate(context.Background(), AllocationRequest{
			Items:        []string{"A", "B"},
			RiskAversion: lambda,
		})
		require.NoError(t, err, "lambda=%v", lambda)
		assert.Equal(t, 0.0, res.Weights["A"], "lambda=%v", lambda)
		assert.Equal(t, 1.0, res.Weights["B"], "lambda=%v", lambda)
	}
}

func TestAllocate_InsufficientItemsBeforeFetch(t *testing.T) {
	source := scenarioSource()
	svc, _ := newTestService(source, nil)

	for _, items := range [][]string{nil, {"A"}, {"A", " A ", ""}} {
		_, err := svc.Allocate(context.Background(), AllocationRequest{Items: items, RiskAversion: 0.5})
		assert.ErrorIs(t, err, domain.ErrInsufficientItems)
	}
	assert.Equal(t, 0, source.CallCount())
}

func TestAllocate_InvalidRequest(t *testing.T) {
	source := scenarioSource()
	svc, _ := newTestService(source, nil)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, AllocationRequest{Items: []string{"A", "B"}, RiskAversion: -0.1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Allocate(ctx, AllocationRequest{Items: []string{"A", "B"}, Period: domain.PeriodHour})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, 0, source.CallCount())
}

func TestAllocate_UpstreamFailure(t *testing.T) {
	source := scenarioSource()
	source.Failing["B"] = true
	svc, _ := newTestService(source, nil)

	_, err := svc.Allocate(context.Background(), AllocationRequest{Items: []string{"A", "B"}, RiskAversion: 0.5})
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestAllocate_ZeroPrice(t *testing.T) {
	source := scenarioSource()
	source.Histories["C"] = testingpkg.PricePoints(1, 10, 11, 0, 12, 13, 12, 14, 15)
	svc, _ := newTestService(source, nil)

	_, err := svc.Allocate(context.Background(), AllocationRequest{Items: []string{"A", "C"}, RiskAversion: 0.5})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceData)
}

func TestAllocate_DifferentLengthsAlign(t *testing.T) {
	source := testingpkg.NewMockMarketDataSource()
	source.Histories["LONG"] = testingpkg.PricePoints(1, 10, 11, 12, 11, 13, 12, 14, 15, 14, 16)
	source.Histories["SHORT"] = testingpkg.PricePoints(1, 20, 21, 19, 22, 23, 21, 24)
	svc, _ := newTestService(source, nil)

	res, err := svc.Allocate(context.Background(), AllocationRequest{
		Items:        []string{"LONG", "SHORT"},
		RiskAversion: 0.8,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Observations)
	assert.InDelta(t, 1.0, res.Weights["LONG"]+res.Weights["SHORT"], 1e-6)
}

func TestAllocateHoldings(t *testing.T) {
	svc, _ := newTestService(scenarioSource(), heldItems{"A", "B"})

	res, err := svc.AllocateHoldings(context.Background(), domain.PeriodWeek, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, res.Items)

	svc, _ = newTestService(scenarioSource(), heldItems{"A"})
	_, err = svc.AllocateHoldings(context.Background(), domain.PeriodWeek, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientItems)
}

func TestAllocateFromPrices(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	ab := testingpkg.ScenarioAB()

	res, err := svc.AllocateFromPrices(context.Background(), []string{"A", "B"}, [][]float64{ab["A"], ab["B"]}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.8251128923106477, res.Weights["A"], 1e-3)

	_, err = svc.AllocateFromPrices(context.Background(), []string{"A", "B"}, [][]float64{ab["A"]}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
