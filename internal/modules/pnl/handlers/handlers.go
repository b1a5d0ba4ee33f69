// Package handlers provides HTTP handlers for PnL reports.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/bazaar-tracker/internal/httputil"
	"github.com/aristath/bazaar-tracker/internal/modules/pnl"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles PnL HTTP requests
type Handler struct {
	service *pnl.Service
	log     zerolog.Logger
}

// NewHandler creates a new PnL handler
func NewHandler(service *pnl.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "pnl").Logger(),
	}
}

// RegisterRoutes registers PnL routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pnl", func(r chi.Router) {
		r.Get("/holdings", h.HandleHoldings)
		r.Get("/trades", h.HandleTrades)
	})
}

// HandleHoldings handles GET /api/pnl/holdings?skip_missing=true
func (h *Handler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	policy := pnl.FailOnMissingQuote
	if raw := r.URL.Query().Get("skip_missing"); raw != "" {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "skip_missing must be a boolean")
			return
		}
		if skip {
			policy = pnl.SkipMissingQuote
		}
	}

	summary, err := h.service.HoldingsReport(r.Context(), policy)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleTrades handles GET /api/pnl/trades?date=YYYY-MM-DD
func (h *Handler) HandleTrades(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	summary, err := h.service.TradesReport(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, httputil.ErrorBody{Error: message})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := httputil.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("PnL request failed")
	}
	h.writeError(w, status, err.Error())
}
