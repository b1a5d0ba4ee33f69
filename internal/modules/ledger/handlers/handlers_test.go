package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/modules/ledger"
	testingpkg "github.com/aristath/bazaar-tracker/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (http.Handler, *ledger.Store) {
	t.Helper()
	db := testingpkg.NewTestDB(t, "ledger")
	store := ledger.NewStore(db.Conn(), nil, zerolog.Nop())

	handler := NewHandler(store, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, store
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOpenAndCloseHolding(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/ledger/holdings", `{"item":"KISMET_FEATHER","quantity":5,"buy_price":100}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var holding domain.Holding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holding))
	assert.Equal(t, "KISMET_FEATHER", holding.Item)

	rec = do(t, router, http.MethodGet, "/ledger/holdings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Holdings []domain.Holding `json:"holdings"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = do(t, router, http.MethodPost, "/ledger/holdings/"+holding.ID+"/close", `{"sale_price":120}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var trade domain.RealizedTrade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trade))
	assert.InDelta(t, 600.0, trade.SaleValue, 1e-9)

	rec = do(t, router, http.MethodGet, "/ledger/trades?date="+time.Now().UTC().Format(DateLayout), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades struct {
		Trades []domain.RealizedTrade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades.Trades, 1)
	assert.Equal(t, trade.ID, trades.Trades[0].ID)
}

func TestCloseHolding_Errors(t *testing.T) {
	router, store := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/ledger/holdings/missing/close", `{"sale_price":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h, err := store.OpenHolding(context.Background(), "A", 1, 1)
	require.NoError(t, err)

	rec = do(t, router, http.MethodPost, "/ledger/holdings/"+h.ID+"/close", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/ledger/holdings/"+h.ID+"/close", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenHolding_Invalid(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodPost, "/ledger/holdings", `{"item":"A","quantity":-1,"buy_price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantity")
}

func TestDeleteEndpoints(t *testing.T) {
	router, store := setupRouter(t)

	h, err := store.OpenHolding(context.Background(), "A", 1, 1)
	require.NoError(t, err)

	rec := do(t, router, http.MethodDelete, "/ledger/holdings/"+h.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodDelete, "/ledger/holdings/"+h.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, "/ledger/trades/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTrades_BadDate(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodGet, "/ledger/trades?date=15/03/2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
