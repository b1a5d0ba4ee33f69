package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinReturnObservations is the smallest return sample that yields a covariance
const MinReturnObservations = 2

// AlignSeries truncates every series to the shortest length, keeping the most
// recent points. Inputs are not modified.
func AlignSeries(series [][]float64) [][]float64 {
	if len(series) == 0 {
		return nil
	}

	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}

	aligned := make([][]float64, len(series))
	for i, s := range series {
		tail := s[len(s)-minLen:]
		aligned[i] = append(make([]float64, 0, minLen), tail...)
	}
	return aligned
}

// SimpleReturns computes period-over-period returns (p_t - p_{t-1}) / p_{t-1}.
// Any non-positive or non-finite price is rejected rather than producing Inf.
func SimpleReturns(prices []float64) ([]float64, error) {
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: price %v at index %d", domain.ErrInvalidPriceData, p, i)
		}
	}
	if len(prices) < 2 {
		return []float64{}, nil
	}

	returns := make([]float64, len(prices)-1)
	for t := 1; t < len(prices); t++ {
		returns[t-1] = (prices[t] - prices[t-1]) / prices[t-1]
	}
	return returns, nil
}

// Moments holds the per-item mean return vector and the sample covariance
type Moments struct {
	Mu           []float64
	Cov          *mat.SymDense
	Observations int
}

// EstimateMoments aligns the price series, converts them to returns and
// estimates mean and covariance (n-1 normalisation). Order follows the input.
func EstimateMoments(prices [][]float64) (*Moments, error) {
	aligned := AlignSeries(prices)
	if len(aligned) == 0 {
		return nil, fmt.Errorf("%w: no price series", domain.ErrInsufficientItems)
	}

	n := len(aligned)
	var obs int
	columns := make([][]float64, n)
	for i, series := range aligned {
		r, err := SimpleReturns(series)
		if err != nil {
			return nil, err
		}
		columns[i] = r
		obs = len(r)
	}

	if obs < MinReturnObservations {
		return nil, fmt.Errorf("%w: %d aligned returns, need at least %d",
			domain.ErrInvalidPriceData, obs, MinReturnObservations)
	}

	// Observations in rows, items in columns
	data := mat.NewDense(obs, n, nil)
	mu := make([]float64, n)
	for j, col := range columns {
		data.SetCol(j, col)
		mu[j] = stat.Mean(col, nil)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := cov.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite covariance", domain.ErrInvalidPriceData)
			}
		}
	}

	return &Moments{Mu: mu, Cov: cov, Observations: obs}, nil
}
