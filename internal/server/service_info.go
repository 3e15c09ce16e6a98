package server

import (
	"net/http"
	"time"

	"casgate/internal/constants"
	"casgate/internal/version"
)

// GET /api/info - Unauthenticated service identification.
func (s *Server) handleServiceInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"name":        constants.AppName,
		"version":     version.Version,
		"uptime_secs": int64(time.Since(s.app.StartedAt) / time.Second),
	})
}
