package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input   string
		want    Period
		wantErr bool
	}{
		{input: "hour", want: PeriodHour},
		{input: "day", want: PeriodDay},
		{input: "week", want: PeriodWeek},
		{input: "month", wantErr: true},
		{input: "DAY", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHolding_CostBasis(t *testing.T) {
	h := Holding{Item: "BOOSTER_COOKIE", Quantity: 3, BuyPrice: 2_500_000}
	assert.Equal(t, 7_500_000.0, h.CostBasis())
}

func TestSellPrices(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{Timestamp: start, Buy: 10, Sell: 11},
		{Timestamp: start.Add(time.Hour), Buy: 12, Sell: 13.5},
	}

	assert.Equal(t, []float64{11, 13.5}, SellPrices(points))
	assert.Empty(t, SellPrices(nil))
}

func TestPlayerOrder_Value(t *testing.T) {
	o := PlayerOrder{Quantity: 64, Price: 1.5}
	assert.Equal(t, 96.0, o.Value())

	assert.Zero(t, PlayerOrder{Price: 100}.Value())
}
