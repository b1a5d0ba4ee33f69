package optimization

import (
	"math"
	"testing"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignSeries_KeepsMostRecent(t *testing.T) {
	long := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	short := []float64{11, 12, 13, 14, 15, 16, 17}

	aligned := AlignSeries([][]float64{long, short})
	require.Len(t, aligned, 2)
	assert.Equal(t, []float64{4, 5, 6, 7, 8, 9, 10}, aligned[0])
	assert.Equal(t, short, aligned[1])

	// Inputs are untouched
	assert.Len(t, long, 10)
	aligned[1][0] = -1
	assert.Equal(t, 11.0, short[0])
}

func TestAlignSeries_Empty(t *testing.T) {
	assert.Nil(t, AlignSeries(nil))
	aligned := AlignSeries([][]float64{{1, 2}, {}})
	assert.Empty(t, aligned[0])
	assert.Empty(t, aligned[1])
}

func TestSimpleReturns(t *testing.T) {
	r, err := SimpleReturns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.InDelta(t, 0.10, r[0], 1e-12)
	assert.InDelta(t, -0.10, r[1], 1e-12)

	r, err = SimpleReturns([]float64{5})
	require.NoError(t, err)
	assert.Empty(t, r)
}

func TestSimpleReturns_InvalidPrices(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{"zero", []float64{100, 0, 101}},
		{"negative", []float64{-1, 2}},
		{"nan", []float64{1, math.NaN()}},
		{"inf", []float64{math.Inf(1), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SimpleReturns(tt.prices)
			assert.ErrorIs(t, err, domain.ErrInvalidPriceData)
		})
	}
}

func TestEstimateMoments(t *testing.T) {
	prices := [][]float64{
		{100, 101, 102, 101, 103, 104, 103, 105},
		{50, 49, 51, 52, 50, 53, 54, 55},
	}
	m, err := EstimateMoments(prices)
	require.NoError(t, err)

	assert.Equal(t, 7, m.Observations)
	assert.InDelta(t, 0.0070585539578929485, m.Mu[0], 1e-12)
	assert.InDelta(t, 0.014192724893307012, m.Mu[1], 1e-12)
	assert.InDelta(t, 0.00015020936514341794, m.Cov.At(0, 0), 1e-12)
	assert.InDelta(t, 0.001136438331603982, m.Cov.At(1, 1), 1e-12)
	assert.InDelta(t, -0.0001150503885346102, m.Cov.At(0, 1), 1e-12)
	assert.Equal(t, m.Cov.At(0, 1), m.Cov.At(1, 0))
}

func TestEstimateMoments_TooFewObservations(t *testing.T) {
	_, err := EstimateMoments([][]float64{{1, 2, 3}, {4, 5}})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceData)
}

func TestEstimateMoments_ZeroPrice(t *testing.T) {
	_, err := EstimateMoments([][]float64{{1, 2, 0, 3}, {4, 5, 6, 7}})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceData)
}
