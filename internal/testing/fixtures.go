package testing

import (
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
)

// FixtureStart is the first timestamp of generated series
var FixtureStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// PricePoints builds an hourly history from sell prices. Buy is sell plus spread.
func PricePoints(spread float64, sells ...float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(sells))
	for i, s := range sells {
		points[i] = domain.PricePoint{
			Timestamp: FixtureStart.Add(time.Duration(i) * time.Hour),
			Buy:       s + spread,
			Sell:      s,
		}
	}
	return points
}

// ScenarioAB is the two-item, eight-period series used to exercise the optimizer
func ScenarioAB() map[string][]float64 {
	return map[string][]float64{
		"A": {100, 101, 102, 101, 103, 104, 103, 105},
		"B": {50, 49, 51, 52, 50, 53, 54, 55},
	}
}
