package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/modules/market"
	testingpkg "github.com/aristath/bazaar-tracker/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() http.Handler {
	source := testingpkg.NewMockMarketDataSource()
	sells := make([]float64, 30)
	for i := range sells {
		sells[i] = 100 + float64(i%5)
	}
	source.Histories["FIGSTONE"] = testingpkg.PricePoints(3, sells...)
	source.Orders["alice"] = []domain.PlayerOrder{}

	router := chi.NewRouter()
	NewHandler(market.NewService(source, 0.01125, zerolog.Nop()), zerolog.Nop()).RegisterRoutes(router)
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleCard(t *testing.T) {
	rec := get(setupRouter(), "/market/FIGSTONE/card?period=day")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var card market.Card
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "FIGSTONE", card.Item)
	assert.Equal(t, 30, card.Points)
	require.NotNil(t, card.Bands)
	assert.Less(t, card.Bands.Lower, card.Bands.Upper)
}

func TestHandleBollinger(t *testing.T) {
	rec := get(setupRouter(), "/market/FIGSTONE/bollinger")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Window int                `json:"window"`
		Bands  []market.BandPoint `json:"bands"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, DefaultBandWindow, body.Window)
	assert.Len(t, body.Bands, 30-DefaultBandWindow+1)

	rec = get(setupRouter(), "/market/FIGSTONE/bollinger?k=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleForecastAndRecommendation(t *testing.T) {
	router := setupRouter()

	rec := get(router, "/market/FIGSTONE/forecast?hours=4")
	require.Equal(t, http.StatusOK, rec.Code)
	var fc market.ForecastResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Len(t, fc.Predictions, 4)

	rec = get(router, "/market/FIGSTONE/forecast?hours=48")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(router, "/market/FIGSTONE/recommendation")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMarket_Errors(t *testing.T) {
	router := setupRouter()

	assert.Equal(t, http.StatusBadGateway, get(router, "/market/UNKNOWN/card").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/market/FIGSTONE/card?period=month").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/market/leaderboard").Code)
	assert.Equal(t, http.StatusOK, get(router, "/market/leaderboard?players=alice").Code)
}
