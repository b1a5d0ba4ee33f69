// Package handlers provides HTTP handlers for allocation runs.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/httputil"
	"github.com/aristath/bazaar-tracker/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Defaults fill request fields the caller leaves out
type Defaults struct {
	Period       domain.Period
	RiskAversion float64
}

// Handler handles optimization HTTP requests
type Handler struct {
	service  *optimization.Service
	defaults Defaults
	log      zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service *optimization.Service, defaults Defaults, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		log:      log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes registers optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimization", func(r chi.Router) {
		r.Post("/allocate", h.HandleAllocate)
	})
}

type allocateRequest struct {
	Items          []string `json:"items"`
	Period         string   `json:"period"`
	RiskAversion   *float64 `json:"risk_aversion"`
	TimeoutSeconds float64  `json:"timeout_seconds"`
	UseHoldings    bool     `json:"use_holdings"`
}

// HandleAllocate handles POST /api/optimization/allocate.
// With use_holdings the items are the distinct items currently held.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	period := h.defaults.Period
	if req.Period != "" {
		p, err := domain.ParsePeriod(req.Period)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		period = p
	}

	lambda := h.defaults.RiskAversion
	if req.RiskAversion != nil {
		lambda = *req.RiskAversion
	}

	var (
		result *optimization.AllocationResult
		err    error
	)
	if req.UseHoldings {
		result, err = h.service.AllocateHoldings(r.Context(), period, lambda)
	} else {
		result, err = h.service.Allocate(r.Context(), optimization.AllocationRequest{
			Items:        req.Items,
			Period:       period,
			RiskAversion: lambda,
			Timeout:      time.Duration(req.TimeoutSeconds * float64(time.Second)),
		})
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
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
		h.log.Error().Err(err).Msg("Allocation request failed")
	}
	h.writeError(w, status, err.Error())
}
