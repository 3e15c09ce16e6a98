package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"casgate/internal/auth"
	"casgate/internal/constants"
	"casgate/internal/ident"
)

// POST /api/depots - Create a depot.
func (s *Server) handleDepots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}

	d, err := s.app.Depots.Create(capCtx, req.Name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, d)
}

// handleDepotRoutes dispatches /api/depots/{id}/versions and
// /api/depots/{id}/access.
func (s *Server) handleDepotRoutes(w http.ResponseWriter, r *http.Request) {
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/depots/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) != 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch segments[1] {
	case "versions":
		s.handleDepotPublish(w, r, capCtx, segments[0])
	case "access":
		s.handleDepotGrant(w, r, capCtx, segments[0])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// POST /api/depots/{id}/versions - Publish the next depot version.
func (s *Server) handleDepotPublish(w http.ResponseWriter, r *http.Request, capCtx *auth.Context, depotID string) {
	var req struct {
		RootHash string `json:"root_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}
	if !isValidHash(req.RootHash) {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidHash)
		return
	}

	// The pinned root must exist in the realm before it can anchor proofs.
	exists, err := s.app.Nodes.Exists(capCtx.Realm, req.RootHash)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !exists {
		WriteErrorCode(w, http.StatusNotFound, constants.ErrCodeNodeNotFound)
		return
	}

	v, err := s.app.Depots.Publish(capCtx, depotID, req.RootHash)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, v)
}

// POST /api/depots/{id}/access - Grant another delegate depot access.
func (s *Server) handleDepotGrant(w http.ResponseWriter, r *http.Request, capCtx *auth.Context, depotID string) {
	var req struct {
		DelegateID string `json:"delegate_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DelegateID == "" {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}

	// Fold the wire form of the grantee ID to canonical before lookup.
	granteeID, err := ident.ParseDelegateID(req.DelegateID)
	if err != nil {
		WriteErrorCode(w, http.StatusNotFound, constants.ErrCodeDelegateNotFound)
		return
	}

	// The grantee must be a real delegate in the caller's realm.
	grantee, err := s.app.AuthStore.Get(capCtx.Realm, granteeID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if grantee == nil {
		WriteErrorCode(w, http.StatusNotFound, constants.ErrCodeDelegateNotFound)
		return
	}

	if err := s.app.Depots.Grant(capCtx, depotID, granteeID); err != nil {
		s.writeFailure(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"depot_id":    depotID,
		"delegate_id": granteeID,
		"granted":     true,
	})
}

// GET /api/audit - Query the audit trail. Admin-only: the caller must be
// a bootstrap context whose subject carries the admin role.
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}

	if capCtx.Type != auth.ContextTypeBootstrap {
		WriteErrorCode(w, http.StatusForbidden, constants.ErrCodeForbidden)
		return
	}
	role, err := s.app.AuthStore.GetRole(capCtx.Realm)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if role != constants.RoleAdmin {
		WriteErrorCode(w, http.StatusForbidden, constants.ErrCodeForbidden)
		return
	}

	limit := constants.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
			return
		}
		if parsed > constants.MaxPageSize {
			parsed = constants.MaxPageSize
		}
		limit = parsed
	}

	events, err := s.app.Audit.Query(r.URL.Query().Get("action"), r.URL.Query().Get("realm"), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
