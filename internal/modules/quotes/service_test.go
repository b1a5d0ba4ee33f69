package quotes

import (
	"context"
	"testing"

	"github.com/aristath/bazaar-tracker/internal/domain"
	testutil "github.com/aristath/bazaar-tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote_LatestPoint(t *testing.T) {
	source := testutil.NewMockMarketDataSource()
	source.Histories["A"] = testutil.PricePoints(2, 10, 11, 12)
	svc := NewService(source, "", zerolog.Nop())

	q, err := svc.Quote(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", q.Item)
	assert.Equal(t, 14.0, q.Buy)
	assert.Equal(t, 12.0, q.Sell)
	assert.True(t, q.AsOf.Equal(source.Histories["A"][2].Timestamp))
}

func TestQuote_Unavailable(t *testing.T) {
	source := testutil.NewMockMarketDataSource()
	source.Histories["EMPTY"] = nil
	svc := NewService(source, domain.PeriodHour, zerolog.Nop())

	_, err := svc.Quote(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	_, err = svc.Quote(context.Background(), "MISSING")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestQuote_CancelledContextIsNotMissingQuote(t *testing.T) {
	source := testutil.NewMockMarketDataSource()
	source.Histories["A"] = testutil.PricePoints(1, 5)
	svc := NewService(source, domain.PeriodHour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Quote(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestQuotes_PartialFailure(t *testing.T) {
	source := testutil.NewMockMarketDataSource()
	source.Histories["A"] = testutil.PricePoints(1, 5)
	svc := NewService(source, domain.PeriodHour, zerolog.Nop())

	got, failed := svc.Quotes(context.Background(), []string{"A", "B"})
	assert.Len(t, got, 1)
	assert.Contains(t, failed, "B")
}
