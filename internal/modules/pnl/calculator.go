// Package pnl computes tax-adjusted profit and loss for holdings and realized trades.
package pnl

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/bazaar-tracker/internal/domain"
)

// DefaultTaxRate is the bazaar sales tax
const DefaultTaxRate = 0.01125

// PositionPnL is the mark-to-market result for one holding
type PositionPnL struct {
	Holding      domain.Holding `json:"holding"`
	MarketPrice  float64        `json:"market_price"`
	NetSalePrice float64        `json:"net_sale_price"`
	MarketValue  float64        `json:"market_value"`
	CostBasis    float64        `json:"cost_basis"`
	GrossPnL     float64        `json:"gross_pnl"`
	NetPnL       float64        `json:"net_pnl"`
}

// TradePnL is the result for one realized trade.
// NetProfit is measured against the acquisition cost after tax.
// TaxDeduction is the (negative) amount tax removes from the sale value.
// RecordedMarginPerUnit is sale_price - sale_value/quantity, zero for consistent rows.
type TradePnL struct {
	Trade                 domain.RealizedTrade `json:"trade"`
	MarginPerUnit         float64              `json:"margin_per_unit"`
	GrossProfit           float64              `json:"gross_profit"`
	TaxPaid               float64              `json:"tax_paid"`
	NetProfit             float64              `json:"net_profit"`
	TaxDeduction          float64              `json:"tax_deduction"`
	RecordedMarginPerUnit float64              `json:"recorded_margin_per_unit"`
}

// Calculator holds the tax rate
type Calculator struct {
	TaxRate float64
}

// NewCalculator creates a calculator; a rate outside [0, 1) falls back to DefaultTaxRate
func NewCalculator(taxRate float64) *Calculator {
	if math.IsNaN(taxRate) || taxRate < 0 || taxRate >= 1 {
		taxRate = DefaultTaxRate
	}
	return &Calculator{TaxRate: taxRate}
}

// NetOfTax returns price after the sales tax
func (c *Calculator) NetOfTax(price float64) float64 {
	return price * (1 - c.TaxRate)
}

// Position marks a holding to the quote's buy price
func (c *Calculator) Position(h domain.Holding, q domain.MarketQuote) (PositionPnL, error) {
	if q.Item != "" && q.Item != h.Item {
		return PositionPnL{}, fmt.Errorf("%w: quote for %s applied to holding of %s", domain.ErrInvalidInput, q.Item, h.Item)
	}

	netSale := c.NetOfTax(q.Buy)
	return PositionPnL{
		Holding:      h,
		MarketPrice:  q.Buy,
		NetSalePrice: netSale,
		MarketValue:  h.Quantity * q.Buy,
		CostBasis:    h.CostBasis(),
		GrossPnL:     h.Quantity * (q.Buy - h.BuyPrice),
		NetPnL:       h.Quantity * (netSale - h.BuyPrice),
	}, nil
}

// Trade computes realized profit for a trade
func (c *Calculator) Trade(t domain.RealizedTrade) TradePnL {
	res := TradePnL{
		Trade:         t,
		MarginPerUnit: t.SalePrice - t.BuyPrice,
		GrossProfit:   t.Quantity * (t.SalePrice - t.BuyPrice),
		TaxPaid:       t.SaleValue * c.TaxRate,
		NetProfit:     c.NetOfTax(t.SaleValue) - t.Quantity*t.BuyPrice,
		TaxDeduction:  c.NetOfTax(t.SaleValue) - t.SaleValue,
	}
	if t.Quantity != 0 {
		res.RecordedMarginPerUnit = t.SalePrice - t.SaleValue/t.Quantity
	}
	return res
}

// MissingQuotePolicy selects how Holdings treats an item without a quote
type MissingQuotePolicy int

const (
	// FailOnMissingQuote aborts the aggregate with ErrQuoteUnavailable
	FailOnMissingQuote MissingQuotePolicy = iota
	// SkipMissingQuote leaves the holding out of the totals and lists it in Skipped
	SkipMissingQuote
)

// SkippedHolding is a holding left out of an aggregate
type SkippedHolding struct {
	Holding domain.Holding `json:"holding"`
	Reason  string         `json:"reason"`
}

// HoldingsSummary aggregates open positions
type HoldingsSummary struct {
	Positions  []PositionPnL    `json:"positions"`
	Skipped    []SkippedHolding `json:"skipped"`
	TotalCost  float64          `json:"total_cost"`
	TotalValue float64          `json:"total_value"`
	TotalGross float64          `json:"total_gross_pnl"`
	TotalNet   float64          `json:"total_net_pnl"`
}

// Holdings marks every holding to market. Quotes are resolved once per item.
// An empty input yields zero totals.
func (c *Calculator) Holdings(ctx context.Context, holdings []domain.Holding, quotes domain.QuoteSource, policy MissingQuotePolicy) (HoldingsSummary, error) {
	summary := HoldingsSummary{
		Positions: make([]PositionPnL, 0, len(holdings)),
		Skipped:   make([]SkippedHolding, 0),
	}

	resolved := make(map[string]domain.MarketQuote)
	failed := make(map[string]error)

	for _, h := range holdings {
		q, ok := resolved[h.Item]
		if !ok {
			if err, seen := failed[h.Item]; seen {
				summary.Skipped = append(summary.Skipped, SkippedHolding{Holding: h, Reason: err.Error()})
				continue
			}

			quote, err := quotes.Quote(ctx, h.Item)
			if err != nil {
				// Only a missing quote can be skipped; cancellation and
				// storage failures abort under either policy.
				if !errors.Is(err, domain.ErrQuoteUnavailable) || ctx.Err() != nil {
					return HoldingsSummary{}, fmt.Errorf("quote for %s: %w", h.Item, err)
				}
				if policy == FailOnMissingQuote {
					return HoldingsSummary{}, err
				}
				failed[h.Item] = err
				summary.Skipped = append(summary.Skipped, SkippedHolding{Holding: h, Reason: err.Error()})
				continue
			}
			resolved[h.Item] = quote
			q = quote
		}

		pos, err := c.Position(h, q)
		if err != nil {
			return HoldingsSummary{}, err
		}
		summary.Positions = append(summary.Positions, pos)
		summary.TotalCost += pos.CostBasis
		summary.TotalValue += pos.MarketValue
		summary.TotalGross += pos.GrossPnL
		summary.TotalNet += pos.NetPnL
	}

	return summary, nil
}

// TradesSummary aggregates realized trades
type TradesSummary struct {
	Trades          []TradePnL `json:"trades"`
	TotalSaleValue  float64    `json:"total_sale_value"`
	TotalCost       float64    `json:"total_cost"`
	TotalTax        float64    `json:"total_tax"`
	TotalGross      float64    `json:"total_gross_profit"`
	TotalNet        float64    `json:"total_net_profit"`
	TotalDeductions float64    `json:"total_tax_deduction"`
}

// Trades sums realized results. An empty input yields zero totals.
func (c *Calculator) Trades(trades []domain.RealizedTrade) TradesSummary {
	summary := TradesSummary{Trades: make([]TradePnL, 0, len(trades))}
	for _, t := range trades {
		res := c.Trade(t)
		summary.Trades = append(summary.Trades, res)
		summary.TotalSaleValue += t.SaleValue
		summary.TotalCost += t.Quantity * t.BuyPrice
		summary.TotalTax += res.TaxPaid
		summary.TotalGross += res.GrossProfit
		summary.TotalNet += res.NetProfit
		summary.TotalDeductions += res.TaxDeduction
	}
	return summary
}
