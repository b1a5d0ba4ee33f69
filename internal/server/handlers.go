package server

import (
	"net/http"

	"github.com/aristath/bazaar-tracker/internal/httputil"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "bazaar-tracker",
	}
	if err := s.container.LedgerDB.HealthCheck(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
		response["error"] = err.Error()
	}

	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
