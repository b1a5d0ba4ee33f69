package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/holdings", h.HandleListHoldings)
		r.Post("/holdings", h.HandleOpenHolding)
		r.Post("/holdings/{id}/close", h.HandleCloseHolding)
		r.Delete("/holdings/{id}", h.HandleDeleteHolding)

		r.Get("/trades", h.HandleListTrades)
		r.Delete("/trades/{id}", h.HandleDeleteTrade)
	})
}
