package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/modules/pnl"
	testingpkg "github.com/aristath/bazaar-tracker/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	holdings []domain.Holding
	trades   []domain.RealizedTrade
}

func (f *fakeLedger) ListHoldings(context.Context) ([]domain.Holding, error) {
	return f.holdings, nil
}

func (f *fakeLedger) ListTradesForDate(context.Context, time.Time) ([]domain.RealizedTrade, error) {
	return f.trades, nil
}

func setupRouter(ledger *fakeLedger) http.Handler {
	quotes := &testingpkg.MockQuoteSource{Quotes: map[string]domain.MarketQuote{
		"A": {Item: "A", Buy: 20, Sell: 19},
	}}
	service := pnl.NewService(pnl.NewCalculator(pnl.DefaultTaxRate), ledger, quotes, zerolog.Nop())
	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleHoldings(t *testing.T) {
	router := setupRouter(&fakeLedger{holdings: []domain.Holding{
		{ID: "1", Item: "A", Quantity: 2, BuyPrice: 10},
		{ID: "2", Item: "B", Quantity: 1, BuyPrice: 10},
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pnl/holdings", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pnl/holdings?skip_missing=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary pnl.HoldingsSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Len(t, summary.Positions, 1)
	assert.Len(t, summary.Skipped, 1)
	assert.InDelta(t, 20.0, summary.TotalGross, 1e-9)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pnl/holdings?skip_missing=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrades(t *testing.T) {
	router := setupRouter(&fakeLedger{trades: []domain.RealizedTrade{
		{ID: "t", Item: "A", Quantity: 1, BuyPrice: 10, SalePrice: 20, SaleValue: 20},
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pnl/trades?date=2024-01-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary pnl.TradesSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.InDelta(t, 20*(1-pnl.DefaultTaxRate)-10, summary.TotalNet, 1e-9)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pnl/trades?date=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
