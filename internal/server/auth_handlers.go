package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"casgate/internal/auth"
	"casgate/internal/constants"
	"casgate/internal/ident"
)

// =============================================================================
// Auth Helpers
// =============================================================================

// requireContext extracts the verified capability context from the
// request. Writes a 401 response and returns nil when absent.
func (s *Server) requireContext(w http.ResponseWriter, r *http.Request) *auth.Context {
	capCtx, ok := auth.FromRequest(r)
	if !ok {
		WriteErrorCode(w, http.StatusUnauthorized, constants.ErrCodeUnauthorized)
		return nil
	}
	return capCtx
}

// =============================================================================
// Credential Endpoints
// =============================================================================

// POST /api/auth/root - Bootstrap (or recover) the realm root delegate.
// Takes a bootstrap identity JWT; this is the only endpoint that creates
// the root, so the regular middleware cannot serve it.
func (s *Server) handleBootstrapRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authHeader := r.Header.Get(constants.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, constants.AuthBearerPrefix) {
		WriteErrorCode(w, http.StatusUnauthorized, constants.ErrCodeUnauthorized)
		return
	}
	claim, err := s.app.Verifier.Verify(strings.TrimPrefix(authHeader, constants.AuthBearerPrefix))
	if err != nil || claim == nil {
		WriteErrorCode(w, http.StatusUnauthorized, constants.ErrCodeUnauthorized)
		return
	}
	if claim.ExpiresAt != nil && *claim.ExpiresAt < time.Now().UnixMilli() {
		WriteErrorCode(w, http.StatusUnauthorized, constants.ErrCodeTokenExpired)
		return
	}

	role, err := s.app.AuthStore.GetRole(claim.Subject)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if role == constants.RoleUnauthorized {
		WriteErrorCode(w, http.StatusForbidden, constants.ErrCodeForbidden)
		return
	}

	existing, err := s.app.AuthStore.GetRootByRealm(claim.Subject)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	delegate, tokens, err := s.app.AuthService.BootstrapRoot(claim.Subject)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	action := constants.AuditRootCreated
	if existing != nil {
		action = constants.AuditTokensRotated
	}
	s.app.Audit.Record(action, delegate.Realm, delegate.DelegateID, nil)

	WriteSuccess(w, map[string]interface{}{
		"delegate": delegate,
		"tokens":   tokens,
	})
}

// POST /api/auth/refresh - Exchange a refresh token for a fresh pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}

	delegate, tokens, err := s.app.AuthService.Refresh(req.RefreshToken)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.app.Audit.Record(constants.AuditTokensRotated, delegate.Realm, delegate.DelegateID, nil)
	WriteSuccess(w, map[string]interface{}{
		"delegate": delegate,
		"tokens":   tokens,
	})
}

// =============================================================================
// Delegate Lifecycle
// =============================================================================

// POST /api/delegates - Create a child delegate under the caller.
func (s *Server) handleDelegates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}

	var input auth.CreateDelegateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}

	userIssued := capCtx.Type == auth.ContextTypeBootstrap
	child, tokens, err := s.app.AuthService.CreateChild(capCtx.Delegate, &input, userIssued)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.app.Audit.Record(constants.AuditDelegateCreated, child.Realm, child.DelegateID, map[string]interface{}{
		"parent": capCtx.DelegateID,
		"depth":  child.Depth,
	})
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"delegate": child,
		"tokens":   tokens,
	})
}

// handleDelegateRoutes dispatches /api/delegates/{id} and
// /api/delegates/{id}/revoke.
func (s *Server) handleDelegateRoutes(w http.ResponseWriter, r *http.Request) {
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/delegates/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	// Text IDs are case-insensitive on the wire; fold to canonical form
	// before any lookup. A malformed ID can never name a stored delegate.
	delegateID, err := ident.ParseDelegateID(segments[0])
	if err != nil {
		WriteErrorCode(w, http.StatusNotFound, constants.ErrCodeDelegateNotFound)
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		s.handleDelegateGet(w, capCtx, delegateID)
	case len(segments) == 2 && segments[1] == "revoke" && r.Method == http.MethodPost:
		s.handleDelegateRevoke(w, capCtx, delegateID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// GET /api/delegates/{id} - Inspect a delegate. Only visible to its
// ancestors (self included).
func (s *Server) handleDelegateGet(w http.ResponseWriter, capCtx *auth.Context, delegateID string) {
	target, err := s.app.AuthStore.Get(capCtx.Realm, delegateID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if target == nil {
		WriteErrorCode(w, http.StatusNotFound, constants.ErrCodeDelegateNotFound)
		return
	}
	if !auth.IsAncestor(capCtx.DelegateID, target.Chain) {
		WriteErrorCode(w, http.StatusForbidden, constants.ErrCodeForbidden)
		return
	}

	children, err := s.app.AuthStore.ListChildren(capCtx.Realm, target.DelegateID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	childIDs := make([]string, 0, len(children))
	for _, c := range children {
		childIDs = append(childIDs, c.DelegateID)
	}

	WriteSuccess(w, map[string]interface{}{
		"delegate": target,
		"children": childIDs,
	})
}

// POST /api/delegates/{id}/revoke - Revoke a delegate and its issued
// credentials. Ancestor-only.
func (s *Server) handleDelegateRevoke(w http.ResponseWriter, capCtx *auth.Context, delegateID string) {
	target, err := s.app.AuthService.RevokeAs(capCtx, delegateID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.app.Audit.Record(constants.AuditDelegateRevoked, target.Realm, target.DelegateID, map[string]interface{}{
		"revoked_by": capCtx.DelegateID,
	})
	WriteSuccess(w, map[string]interface{}{
		"delegate_id": target.DelegateID,
		"revoked":     true,
	})
}
