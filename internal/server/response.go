package server

import (
	"encoding/json"
	"net/http"

	"casgate/internal/auth"
	"casgate/internal/constants"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a simple success response.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteErrorCode writes the wire error body {"error":"<CODE>"}. Every
// denial and failure uses this exact shape; messages never reach the wire.
func WriteErrorCode(w http.ResponseWriter, status int, code string) {
	WriteJSON(w, status, map[string]string{"error": code})
}

// writeFailure maps a service error onto the wire. Capability errors carry
// their own status and code; anything else is an internal error whose
// detail stays in the logs.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	if authErr, ok := auth.AsError(err); ok {
		WriteErrorCode(w, authErr.Status, authErr.Code)
		return
	}
	s.logger.Error("request failed: %v", err)
	WriteErrorCode(w, http.StatusInternalServerError, constants.ErrCodeInternalError)
}
