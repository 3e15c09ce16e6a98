// Package claim records legitimate node possession. A delegate acquires
// an ownership row either by uploading the node or by proving it already
// holds the content through a keyed possession tag.
package claim

import (
	"net/http"

	"casgate/internal/auth"
	"casgate/internal/constants"
	"casgate/internal/dag"
	"casgate/internal/logger"
)

// How an ownership row came to exist.
const (
	ViaUpload = "upload"
	ViaClaim  = "claim"
)

// NodeContentSource loads node content for tag verification.
type NodeContentSource interface {
	Get(realm, hash string) (*dag.Node, error)
}

// Service verifies proof-of-possession claims and records ownership.
type Service struct {
	nodes     NodeContentSource
	ownership *Store
	logger    *logger.Logger
}

// NewService creates the claim service.
func NewService(nodes NodeContentSource, ownership *Store, log *logger.Logger) *Service {
	return &Service{nodes: nodes, ownership: ownership, logger: log}
}

// Ownership exposes the backing store for proof-validator wiring.
func (s *Service) Ownership() *Store {
	return s.ownership
}

// Submit verifies a possession tag over the stored node content and, on
// success, records ownership for the claiming delegate. The tag is keyed
// per delegate, so a tag observed in one claim cannot be replayed by
// another principal.
func (s *Service) Submit(capCtx *auth.Context, nodeHash, tagHex string) error {
	if nodeHash == dag.EmptyNodeHash {
		// Possession of the empty node is universal; nothing to record.
		return nil
	}

	node, err := s.nodes.Get(capCtx.Realm, nodeHash)
	if err != nil {
		return err
	}
	if node == nil {
		return auth.ErrNodeNotFound
	}

	key, err := auth.PossessionKey(capCtx.Realm, capCtx.DelegateID)
	if err != nil {
		return err
	}
	expected, err := auth.PossessionTag(key, node.Content)
	if err != nil {
		return err
	}
	if !auth.ConstantTimeEqualHex(tagHex, expected) {
		s.logger.Warn("claim: rejected possession tag from %s for node %s", capCtx.DelegateID, nodeHash)
		return &auth.Error{Code: constants.ErrCodeClaimRejected, Status: http.StatusForbidden}
	}

	if err := s.ownership.Record(capCtx.Realm, nodeHash, capCtx.DelegateID, ViaClaim); err != nil {
		return err
	}
	s.logger.Info("claim: delegate %s proved possession of node %s", capCtx.DelegateID, nodeHash)
	return nil
}
