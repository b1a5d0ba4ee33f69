package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// BollingerBands represents Bollinger Bands values
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerSeries calculates rolling Bollinger Bands over closes.
//
//	Middle Band = window SMA
//	Upper Band  = Middle + k × sample std deviation
//	Lower Band  = Middle - k × sample std deviation
//
// The result has len(closes)-window+1 entries; entry i covers
// closes[i : i+window]. Returns nil if there are fewer closes than window
// or window < 2.
func BollingerSeries(closes []float64, window int, k float64) []BollingerBands {
	if window < 2 || len(closes) < window {
		return nil
	}

	// go-talib uses the population deviation; rescale k so the bands use
	// the sample deviation.
	dev := k * math.Sqrt(float64(window)/float64(window-1))

	// Parameters: inReal, inTimePeriod, inNbDevUp, inNbDevDn, inMAType
	// MAType 0 = SMA (Simple Moving Average)
	upper, middle, lower := talib.BBands(closes, window, dev, dev, 0)

	out := make([]BollingerBands, 0, len(closes)-window+1)
	for i := window - 1; i < len(closes); i++ {
		out = append(out, BollingerBands{
			Upper:  upper[i],
			Middle: middle[i],
			Lower:  lower[i],
		})
	}
	return out
}

// CalculateBollingerBands returns the bands for the most recent window, or nil
// if there is insufficient data
func CalculateBollingerBands(closes []float64, window int, k float64) *BollingerBands {
	series := BollingerSeries(closes, window, k)
	if len(series) == 0 {
		return nil
	}
	last := series[len(series)-1]
	if math.IsNaN(last.Upper) {
		return nil
	}
	return &last
}
