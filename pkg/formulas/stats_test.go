package formulas

import (
	"math"
	"testing"
)

func TestMeanAndStdDev(t *testing.T) {
	tests := []struct {
		name   string
		data   []float64
		mean   float64
		stdDev float64
	}{
		{name: "empty", data: []float64{}, mean: 0, stdDev: 0},
		{name: "single value", data: []float64{7}, mean: 7, stdDev: 0},
		{name: "sample deviation", data: []float64{2, 4, 4, 4, 5, 5, 7, 9}, mean: 5, stdDev: math.Sqrt(32.0 / 7.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.data); math.Abs(got-tt.mean) > 1e-12 {
				t.Errorf("Mean() = %v, want %v", got, tt.mean)
			}
			if got := StdDev(tt.data); math.Abs(got-tt.stdDev) > 1e-12 {
				t.Errorf("StdDev() = %v, want %v", got, tt.stdDev)
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}

	if got := Quantile(data, 0.05); got != 1 {
		t.Errorf("Quantile(0.05) = %v, want 1", got)
	}
	if got := Quantile(data, 1); got != 5 {
		t.Errorf("Quantile(1) = %v, want 5", got)
	}
	if data[0] != 5 {
		t.Error("Quantile must not reorder its input")
	}
	if got := Quantile(nil, 0.5); !math.IsNaN(got) {
		t.Errorf("Quantile(empty) = %v, want NaN", got)
	}
	if got := Quantile(data, 1.5); !math.IsNaN(got) {
		t.Errorf("Quantile(1.5) = %v, want NaN", got)
	}
}

func TestLinearTrend(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}

	intercept, slope := LinearTrend(x, y)
	if math.Abs(intercept-1) > 1e-12 || math.Abs(slope-2) > 1e-12 {
		t.Errorf("LinearTrend() = (%v, %v), want (1, 2)", intercept, slope)
	}

	intercept, slope = LinearTrend([]float64{1}, []float64{4})
	if intercept != 4 || slope != 0 {
		t.Errorf("LinearTrend(single) = (%v, %v), want (4, 0)", intercept, slope)
	}
}

func TestPercentChangeAndRound(t *testing.T) {
	if got := PercentChange(200, 250); got != 25 {
		t.Errorf("PercentChange() = %v, want 25", got)
	}
	if got := PercentChange(-100, -50); got != 50 {
		t.Errorf("PercentChange(negative base, rise) = %v, want 50", got)
	}
	if got := PercentChange(-100, -150); got != -50 {
		t.Errorf("PercentChange(negative base, fall) = %v, want -50", got)
	}
	if got := PercentChange(0, 250); got != 0 {
		t.Errorf("PercentChange(0 base) = %v, want 0", got)
	}
	if got := Round(12.345, 1); got != 12.3 {
		t.Errorf("Round() = %v, want 12.3", got)
	}
}

func TestBollingerSeries(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	bands := BollingerSeries(closes, 3, 2)
	if len(bands) != 3 {
		t.Fatalf("len(BollingerSeries) = %d, want 3", len(bands))
	}
	// Each window of three consecutive integers has mean = middle value, sample sd = 1
	for i, b := range bands {
		mid := float64(i + 2)
		if math.Abs(b.Middle-mid) > 1e-9 || math.Abs(b.Upper-(mid+2)) > 1e-9 || math.Abs(b.Lower-(mid-2)) > 1e-9 {
			t.Errorf("bands[%d] = %+v, want middle %v ± 2", i, b, mid)
		}
	}

	if BollingerSeries(closes, 10, 2) != nil {
		t.Error("expected nil for insufficient data")
	}
	if CalculateBollingerBands(closes, 3, 2) == nil {
		t.Error("expected latest bands")
	}
}
