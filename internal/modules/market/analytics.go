// Package market derives dashboard metrics, bands, forecasts and trade
// recommendations from bazaar price history.
package market

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/pkg/formulas"
)

// BaselineWindow is the number of preceding after-tax margins a card compares against
const BaselineWindow = 10

// Card band parameters over sell prices
const (
	CardBandWindow = 20
	CardBandK      = 2.0
)

// AlertLevel classifies how far the latest after-tax margin moved from its baseline
type AlertLevel string

const (
	AlertSurge       AlertLevel = "surge"
	AlertStrongRise  AlertLevel = "strong_rise"
	AlertCrash       AlertLevel = "crash"
	AlertStrongFall  AlertLevel = "strong_fall"
	AlertNotableDrop AlertLevel = "notable_drop"
	AlertNone        AlertLevel = "none"
)

// ClassifyDeviation maps a percentage deviation onto an alert level
func ClassifyDeviation(pct float64) AlertLevel {
	switch {
	case pct > 20:
		return AlertSurge
	case pct > 10:
		return AlertStrongRise
	case pct < -20:
		return AlertCrash
	case pct < -10:
		return AlertStrongFall
	case pct < -5:
		return AlertNotableDrop
	default:
		return AlertNone
	}
}

// Card summarises the latest state of an item
type Card struct {
	Item           string     `json:"item"`
	AsOf           time.Time  `json:"as_of"`
	Buy            float64    `json:"buy"`
	Sell           float64    `json:"sell"`
	Margin         float64    `json:"margin"`
	AfterTaxMargin float64    `json:"after_tax_margin"`
	ROI            float64    `json:"roi_pct"`
	BaselineMean   float64    `json:"baseline_mean"`
	BaselineStdDev float64    `json:"baseline_stddev"`
	Deviation      float64    `json:"deviation"`
	DeviationPct   float64    `json:"deviation_pct"`
	Alert          AlertLevel `json:"alert"`
	Points         int        `json:"points"`

	// Latest Bollinger band; nil with fewer than CardBandWindow points
	Bands *formulas.BollingerBands `json:"bands,omitempty"`
}

// BuildCard computes margins, ROI and the margin alert for an item.
// Margins are rounded to one decimal. The baseline needs BaselineWindow+1
// points; with fewer the deviation is zero and the alert is none.
func BuildCard(item string, points []domain.PricePoint, taxRate float64) (*Card, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", domain.ErrDataUnavailable, item)
	}

	afterTax := make([]float64, len(points))
	for i, p := range points {
		afterTax[i] = formulas.Round(p.Buy*(1-taxRate)-p.Sell, 1)
	}

	last := points[len(points)-1]
	card := &Card{
		Item:           item,
		AsOf:           last.Timestamp,
		Buy:            last.Buy,
		Sell:           last.Sell,
		Margin:         formulas.Round(last.Buy-last.Sell, 1),
		AfterTaxMargin: afterTax[len(afterTax)-1],
		Alert:          AlertNone,
		Points:         len(points),
		Bands:          formulas.CalculateBollingerBands(domain.SellPrices(points), CardBandWindow, CardBandK),
	}
	if last.Buy != 0 {
		card.ROI = card.AfterTaxMargin / last.Buy * 100
	}

	if len(afterTax) > BaselineWindow {
		window := afterTax[len(afterTax)-1-BaselineWindow : len(afterTax)-1]
		card.BaselineMean = formulas.Mean(window)
		card.BaselineStdDev = formulas.StdDev(window)
		card.Deviation = card.AfterTaxMargin - card.BaselineMean
		card.DeviationPct = formulas.PercentChange(card.BaselineMean, card.AfterTaxMargin)
		card.Alert = ClassifyDeviation(card.DeviationPct)
	}

	return card, nil
}

// BandPoint is one Bollinger observation aligned to its price point
type BandPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Upper     float64   `json:"upper"`
	Middle    float64   `json:"middle"`
	Lower     float64   `json:"lower"`
}

// Bollinger computes rolling bands over sell prices. Points before the first
// full window are omitted; too short a history yields an empty slice.
func Bollinger(points []domain.PricePoint, window int, k float64) []BandPoint {
	series := formulas.BollingerSeries(domain.SellPrices(points), window, k)
	out := make([]BandPoint, 0, len(series))
	for i, b := range series {
		p := points[i+window-1]
		out = append(out, BandPoint{
			Timestamp: p.Timestamp,
			Price:     p.Sell,
			Upper:     b.Upper,
			Middle:    b.Middle,
			Lower:     b.Lower,
		})
	}
	return out
}

// MaxForecastHours bounds the forecast horizon
const MaxForecastHours = 24

// Prediction is a forecast sell price
type Prediction struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// ForecastResult is a least-squares trend over sell price and its extrapolation
type ForecastResult struct {
	Intercept    float64      `json:"intercept"`
	SlopePerHour float64      `json:"slope_per_hour"`
	Predictions  []Prediction `json:"predictions"`
}

// Forecast fits sell price against unix time and predicts the next hours,
// one point per hour after the last observation.
func Forecast(points []domain.PricePoint, hours int) (*ForecastResult, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no history to forecast", domain.ErrDataUnavailable)
	}
	if hours < 1 || hours > MaxForecastHours {
		return nil, fmt.Errorf("%w: forecast horizon must be 1-%d hours", domain.ErrInvalidInput, MaxForecastHours)
	}

	intercept, slope := trend(points)
	last := points[len(points)-1].Timestamp

	predictions := make([]Prediction, hours)
	for i := range predictions {
		at := last.Add(time.Duration(i+1) * time.Hour)
		predictions[i] = Prediction{
			Timestamp: at,
			Price:     intercept + slope*unixSeconds(at),
		}
	}

	return &ForecastResult{
		Intercept:    intercept,
		SlopePerHour: slope * time.Hour.Seconds(),
		Predictions:  predictions,
	}, nil
}

// Action is a recommended trade direction
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionWatch Action = "watch"
)

// Quantile bounds for Recommend
const (
	LowQuantile  = 0.05
	HighQuantile = 0.95
)

// Recommendation compares the latest sell price to its recent distribution
type Recommendation struct {
	Action     Action     `json:"action"`
	Latest     float64    `json:"latest"`
	Low        float64    `json:"low"`
	High       float64    `json:"high"`
	Mean       float64    `json:"mean"`
	Rising     bool       `json:"rising"`
	TargetTime *time.Time `json:"target_time,omitempty"`
}

// Recommend returns buy at or below the 5% quantile, sell at or above the 95%
// quantile and watch otherwise. On a sell signal with a rising trend,
// TargetTime is when the trend line reaches the high quantile.
func Recommend(points []domain.PricePoint) (*Recommendation, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no history to evaluate", domain.ErrDataUnavailable)
	}

	prices := domain.SellPrices(points)
	rec := &Recommendation{
		Latest: prices[len(prices)-1],
		Low:    formulas.Quantile(prices, LowQuantile),
		High:   formulas.Quantile(prices, HighQuantile),
		Mean:   formulas.Mean(prices),
	}

	switch {
	case rec.Latest <= rec.Low:
		rec.Action = ActionBuy
	case rec.Latest >= rec.High:
		rec.Action = ActionSell
		intercept, slope := trend(points)
		rec.Rising = slope > 0
		if rec.Rising {
			secs := (rec.High - intercept) / slope
			whole, frac := math.Modf(secs)
			target := time.Unix(int64(whole), int64(frac*1e9)).In(points[len(points)-1].Timestamp.Location())
			rec.TargetTime = &target
		}
	default:
		rec.Action = ActionWatch
	}

	return rec, nil
}

// trend fits sell = intercept + slope*unix_seconds
func trend(points []domain.PricePoint) (intercept, slope float64) {
	x := make([]float64, len(points))
	for i, p := range points {
		x[i] = unixSeconds(p.Timestamp)
	}
	return formulas.LinearTrend(x, domain.SellPrices(points))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
