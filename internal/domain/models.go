// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"
)

// Period is the resolution of a market price history request
type Period string

const (
	PeriodHour Period = "hour"
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

// ParsePeriod validates a period string
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodHour, PeriodDay, PeriodWeek:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", ErrInvalidInput, s)
	}
}

// Holding is an open position: units of an item bought at a per-unit price.
// A holding exists until it is sold in full or deleted.
type Holding struct {
	OpenedAt time.Time `json:"opened_at"`
	ID       string    `json:"id"`
	Item     string    `json:"item"`
	Quantity float64   `json:"quantity"`
	BuyPrice float64   `json:"buy_price"`
}

// CostBasis returns quantity times buy price
func (h Holding) CostBasis() float64 {
	return h.Quantity * h.BuyPrice
}

// RealizedTrade records the sale of a holding
type RealizedTrade struct {
	ClosedAt  time.Time `json:"closed_at"`
	ID        string    `json:"id"`
	HoldingID string    `json:"holding_id"`
	Item      string    `json:"item"`
	Quantity  float64   `json:"quantity"`
	BuyPrice  float64   `json:"buy_price"`
	SalePrice float64   `json:"sale_price"`
	SaleValue float64   `json:"sale_value"`
}

// MarketQuote is the current buy/sell price of an item.
// Buy is the instant-sell price a holder receives.
type MarketQuote struct {
	AsOf time.Time `json:"as_of"`
	Item string    `json:"item"`
	Buy  float64   `json:"buy"`
	Sell float64   `json:"sell"`
}

// PricePoint is one entry of an item's price history
type PricePoint struct {
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	Buy        float64   `json:"buy" msgpack:"buy"`
	Sell       float64   `json:"sell" msgpack:"sell"`
	BuyVolume  float64   `json:"buy_volume" msgpack:"buy_volume"`
	SellVolume float64   `json:"sell_volume" msgpack:"sell_volume"`
	MaxBuy     float64   `json:"max_buy" msgpack:"max_buy"`
	MinSell    float64   `json:"min_sell" msgpack:"min_sell"`
}

// SellPrices extracts the sell series from a history
func SellPrices(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Sell
	}
	return out
}

// PlayerOrder is a single bazaar order placed by a player.
// TimestampSource and PriceSource name the upstream field each value was read from.
type PlayerOrder struct {
	Timestamp       time.Time `json:"timestamp"`
	TimestampSource string    `json:"timestamp_source"`
	PriceSource     string    `json:"price_source"`
	RawTimestamp    string    `json:"raw_timestamp,omitempty"`
	Quantity        float64   `json:"quantity"`
	Price           float64   `json:"price"`
	TimestampValid  bool      `json:"timestamp_valid"`
}

// Value returns quantity times price
func (o PlayerOrder) Value() float64 {
	return o.Quantity * o.Price
}
