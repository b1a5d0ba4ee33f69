// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/bazaar-tracker/internal/httputil"
	"github.com/aristath/bazaar-tracker/internal/modules/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DateLayout is the format of the date query parameter
const DateLayout = "2006-01-02"

// Handler handles ledger HTTP requests
type Handler struct {
	store *ledger.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(store *ledger.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		now:   time.Now,
		log:   log.With().Str("handler", "ledger").Logger(),
	}
}

// openHoldingRequest is the body of POST /holdings
type openHoldingRequest struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	BuyPrice float64 `json:"buy_price"`
}

// closeHoldingRequest is the body of POST /holdings/{id}/close
type closeHoldingRequest struct {
	SalePrice *float64 `json:"sale_price"`
}

// HandleListHoldings handles GET /api/ledger/holdings
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.store.ListHoldings(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "Failed to list holdings")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

// HandleOpenHolding handles POST /api/ledger/holdings
func (h *Handler) HandleOpenHolding(w http.ResponseWriter, r *http.Request) {
	var req openHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	holding, err := h.store.OpenHolding(r.Context(), req.Item, req.Quantity, req.BuyPrice)
	if err != nil {
		h.writeDomainError(w, err, "Failed to open holding")
		return
	}
	h.writeJSON(w, http.StatusCreated, holding)
}

// HandleCloseHolding handles POST /api/ledger/holdings/{id}/close
func (h *Handler) HandleCloseHolding(w http.ResponseWriter, r *http.Request) {
	var req closeHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.SalePrice == nil {
		h.writeError(w, http.StatusBadRequest, "sale_price is required")
		return
	}

	trade, err := h.store.CloseHolding(r.Context(), chi.URLParam(r, "id"), *req.SalePrice)
	if err != nil {
		h.writeDomainError(w, err, "Failed to close holding")
		return
	}
	h.writeJSON(w, http.StatusCreated, trade)
}

// HandleDeleteHolding handles DELETE /api/ledger/holdings/{id}
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteHolding(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err, "Failed to delete holding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListTrades handles GET /api/ledger/trades?date=YYYY-MM-DD (default today, UTC)
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	trades, err := h.store.ListTradesForDate(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err, "Failed to list trades")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":   date.Format(DateLayout),
		"trades": trades,
		"count":  len(trades),
	})
}

// HandleDeleteTrade handles DELETE /api/ledger/trades/{id}
func (h *Handler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTrade(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err, "Failed to delete trade")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDate reads the date query parameter; it writes the error response itself
func (h *Handler) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.now().UTC(), true
	}
	date, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, httputil.ErrorBody{Error: message})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string) {
	status := httputil.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	}
	h.writeError(w, status, err.Error())
}
