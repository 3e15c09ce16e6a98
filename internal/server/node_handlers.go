package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"casgate/internal/auth"
	"casgate/internal/claim"
	"casgate/internal/constants"
)

// parseProofHeader decodes the X-CAS-Proof header into per-node proofs.
// The header is either a JSON object mapping node hashes to proof strings
// or, for single-node requests, one bare proof string.
func parseProofHeader(r *http.Request, defaultHash string) (map[string]string, *auth.Error) {
	raw := r.Header.Get(constants.HeaderProof)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "{") {
		proofs := make(map[string]string)
		if err := json.Unmarshal([]byte(raw), &proofs); err != nil {
			return nil, auth.ErrInvalidProofFormat
		}
		return proofs, nil
	}
	if defaultHash == "" {
		return nil, auth.ErrInvalidProofFormat
	}
	return map[string]string{defaultHash: raw}, nil
}

// isValidHash checks the canonical lowercase 64-char hex form.
func isValidHash(hash string) bool {
	if len(hash) != constants.HashLength {
		return false
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// recordDenial audits one denied node access.
func (s *Server) recordDenial(capCtx *auth.Context, nodeHash string, authErr *auth.Error) {
	s.app.Audit.Record(constants.AuditAccessDenied, capCtx.Realm, capCtx.DelegateID, map[string]interface{}{
		"node": nodeHash,
		"code": authErr.Code,
	})
}

// PUT /api/nodes - Upload a node. Requires the upload permission, and
// every referenced child must be independently authorized.
func (s *Server) handleNodeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}
	if !capCtx.CanUpload {
		WriteErrorCode(w, http.StatusForbidden, constants.ErrCodeForbidden)
		return
	}

	var req struct {
		Content  string   `json:"content"` // base64
		Children []string `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}
	for _, child := range req.Children {
		if !isValidHash(child) {
			WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidHash)
			return
		}
	}

	proofs, authErr := parseProofHeader(r, "")
	if authErr != nil {
		WriteErrorCode(w, authErr.Status, authErr.Code)
		return
	}
	if authErr := s.app.Proofs.AuthorizeAll(capCtx, req.Children, proofs); authErr != nil {
		s.recordDenial(capCtx, strings.Join(req.Children, ","), authErr)
		WriteErrorCode(w, authErr.Status, authErr.Code)
		return
	}

	node, err := s.app.Nodes.Put(capCtx.Realm, content, req.Children)
	if err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}
	if err := s.app.Claims.Ownership().Record(capCtx.Realm, node.Hash, capCtx.DelegateID, claim.ViaUpload); err != nil {
		s.writeFailure(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, node)
}

// GET /api/nodes/{hash} - Fetch a node, gated by the proof validator.
func (s *Server) handleNodeFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}

	hash := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/nodes/"), "/")
	if !isValidHash(hash) {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidHash)
		return
	}

	proofs, authErr := parseProofHeader(r, hash)
	if authErr != nil {
		WriteErrorCode(w, authErr.Status, authErr.Code)
		return
	}
	if authErr := s.app.Proofs.Authorize(capCtx, hash, proofs[hash]); authErr != nil {
		s.recordDenial(capCtx, hash, authErr)
		WriteErrorCode(w, authErr.Status, authErr.Code)
		return
	}

	node, err := s.app.Nodes.Get(capCtx.Realm, hash)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if node == nil {
		WriteErrorCode(w, http.StatusNotFound, constants.ErrCodeNodeNotFound)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"hash":     node.Hash,
		"content":  base64.StdEncoding.EncodeToString(node.Content),
		"children": node.Children,
		"size":     node.Size,
	})
}

// POST /api/claims - Prove possession of a node's content.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	capCtx := s.requireContext(w, r)
	if capCtx == nil {
		return
	}

	var req struct {
		NodeHash string `json:"node_hash"`
		Tag      string `json:"tag"` // hex keyed hash over the content
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest)
		return
	}
	if !isValidHash(req.NodeHash) {
		WriteErrorCode(w, http.StatusBadRequest, constants.ErrCodeInvalidHash)
		return
	}

	if err := s.app.Claims.Submit(capCtx, req.NodeHash, req.Tag); err != nil {
		if authErr, ok := auth.AsError(err); ok && authErr.Code == constants.ErrCodeClaimRejected {
			s.app.Audit.Record(constants.AuditClaimRejected, capCtx.Realm, capCtx.DelegateID, map[string]interface{}{
				"node": req.NodeHash,
			})
		}
		s.writeFailure(w, err)
		return
	}

	s.app.Audit.Record(constants.AuditClaimAccepted, capCtx.Realm, capCtx.DelegateID, map[string]interface{}{
		"node": req.NodeHash,
	})
	WriteSuccess(w, map[string]interface{}{
		"node_hash": req.NodeHash,
		"owned":     true,
	})
}
