// Package handlers provides HTTP handlers for market analytics.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/httputil"
	"github.com/aristath/bazaar-tracker/internal/modules/market"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Band defaults
const (
	DefaultBandWindow = 20
	DefaultBandK      = 2.0
	DefaultHours      = 6
)

// Handler handles market analytics HTTP requests
type Handler struct {
	service *market.Service
	log     zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(service *market.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers market routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/leaderboard", h.HandleLeaderboard)
		r.Get("/{item}/card", h.HandleCard)
		r.Get("/{item}/bollinger", h.HandleBollinger)
		r.Get("/{item}/forecast", h.HandleForecast)
		r.Get("/{item}/recommendation", h.HandleRecommendation)
	})
}

// HandleCard handles GET /api/market/{item}/card?period=
func (h *Handler) HandleCard(w http.ResponseWriter, r *http.Request) {
	period, ok := h.period(w, r, domain.PeriodHour)
	if !ok {
		return
	}
	card, err := h.service.Card(r.Context(), chi.URLParam(r, "item"), period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// HandleBollinger handles GET /api/market/{item}/bollinger?period=&window=&k=
func (h *Handler) HandleBollinger(w http.ResponseWriter, r *http.Request) {
	period, ok := h.period(w, r, domain.PeriodHour)
	if !ok {
		return
	}
	window, ok := h.intParam(w, r, "window", DefaultBandWindow)
	if !ok {
		return
	}
	k := DefaultBandK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "k must be a positive number")
			return
		}
		k = parsed
	}

	bands, err := h.service.Bollinger(r.Context(), chi.URLParam(r, "item"), period, window, k)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"window": window,
		"k":      k,
		"bands":  bands,
	})
}

// HandleForecast handles GET /api/market/{item}/forecast?period=&hours=
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	period, ok := h.period(w, r, domain.PeriodHour)
	if !ok {
		return
	}
	hours, ok := h.intParam(w, r, "hours", DefaultHours)
	if !ok {
		return
	}

	forecast, err := h.service.Forecast(r.Context(), chi.URLParam(r, "item"), period, hours)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, forecast)
}

// HandleRecommendation handles GET /api/market/{item}/recommendation?period=
func (h *Handler) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	period, ok := h.period(w, r, domain.PeriodHour)
	if !ok {
		return
	}
	rec, err := h.service.Recommend(r.Context(), chi.URLParam(r, "item"), period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleLeaderboard handles GET /api/market/leaderboard?players=a,b&window_hours=&limit=
func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	players := market.ParsePlayers(r.URL.Query().Get("players"))
	hours, ok := h.intParam(w, r, "window_hours", int(market.DefaultLeaderboardWindow/time.Hour))
	if !ok {
		return
	}
	limit, ok := h.intParam(w, r, "limit", market.DefaultLeaderboardLimit)
	if !ok {
		return
	}

	board, err := h.service.Leaderboard(r.Context(), players, time.Duration(hours)*time.Hour, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, board)
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request, def domain.Period) (domain.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return def, true
	}
	p, err := domain.ParsePeriod(raw)
	if err != nil {
		h.writeDomainError(w, err)
		return "", false
	}
	return p, true
}

func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		h.writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return v, true
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
		h.log.Error().Err(err).Msg("Market request failed")
	}
	h.writeError(w, status, err.Error())
}
