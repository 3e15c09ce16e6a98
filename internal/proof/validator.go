package proof

import (
	"casgate/internal/auth"
	"casgate/internal/constants"
	"casgate/internal/dag"
	"casgate/internal/logger"
)

// OwnershipSource answers whether a delegate legitimately possesses a
// node, which bypasses proof checking entirely.
type OwnershipSource interface {
	Owns(realm, nodeHash, delegateID string) (bool, error)
}

// DepotSource resolves depot version roots and per-delegate access grants
// for depot-anchored proofs.
type DepotSource interface {
	VersionRoot(realm, depotID string, version int64) (rootHash string, found bool, err error)
	HasAccess(depotID, delegateID string) (bool, error)
}

// Validator evaluates proofs against the live node graph. Evaluation is
// read-only and bounded by the proof's own length: each step resolves
// exactly one node.
type Validator struct {
	nodes     dag.Resolver
	ownership OwnershipSource
	depots    DepotSource
	logger    *logger.Logger
}

// NewValidator creates a proof validator.
func NewValidator(nodes dag.Resolver, ownership OwnershipSource, depots DepotSource, log *logger.Logger) *Validator {
	return &Validator{nodes: nodes, ownership: ownership, depots: depots, logger: log}
}

// Authorize decides whether the capability context may access one node.
// Precedence: root contexts bypass everything; legitimate possession
// (including the well-known empty node) bypasses proofs; otherwise a
// proof is required and evaluated.
func (v *Validator) Authorize(capCtx *auth.Context, nodeHash, rawProof string) *auth.Error {
	if capCtx.Depth() == constants.RootDepth {
		return nil
	}

	if nodeHash == dag.EmptyNodeHash {
		return nil
	}
	owns, err := v.ownership.Owns(capCtx.Realm, nodeHash, capCtx.DelegateID)
	if err != nil {
		v.logger.Error("proof: ownership lookup failed for %s: %v", nodeHash, err)
		return auth.ErrProofRequired
	}
	if owns {
		return nil
	}

	if rawProof == "" {
		return auth.ErrProofRequired
	}
	parsed, authErr := Parse(rawProof)
	if authErr != nil {
		return authErr
	}

	switch parsed.Kind {
	case KindDepot:
		return v.evaluateDepot(capCtx, nodeHash, parsed)
	default:
		return v.evaluateIndexPath(capCtx, nodeHash, parsed)
	}
}

// AuthorizeAll authorizes every node in hashes, taking per-node proofs
// from the proofs map. A specific failure (bad proof, unreachable node,
// missing node) outranks the generic missing-proof failure.
func (v *Validator) AuthorizeAll(capCtx *auth.Context, hashes []string, proofs map[string]string) *auth.Error {
	var required *auth.Error
	for _, hash := range hashes {
		if authErr := v.Authorize(capCtx, hash, proofs[hash]); authErr != nil {
			if authErr.Code != auth.ErrProofRequired.Code {
				return authErr
			}
			required = authErr
		}
	}
	return required
}

// evaluateIndexPath walks from a scope root along child indices and
// requires the walk to land exactly on the requested node.
func (v *Validator) evaluateIndexPath(capCtx *auth.Context, nodeHash string, p *Proof) *auth.Error {
	scopeRoots := capCtx.Delegate.ScopeRoots
	rootIdx := p.Path[0]
	if rootIdx >= len(scopeRoots) {
		return auth.ErrNodeNotInScope
	}
	return v.walk(capCtx.Realm, scopeRoots[rootIdx], p.Path[1:], nodeHash)
}

// evaluateDepot resolves the depot version root first, then checks the
// access grant, then walks. Resolution before access keeps a missing
// version a 404 rather than leaking through the ACL answer.
func (v *Validator) evaluateDepot(capCtx *auth.Context, nodeHash string, p *Proof) *auth.Error {
	rootHash, found, err := v.depots.VersionRoot(capCtx.Realm, p.DepotID, p.Version)
	if err != nil {
		v.logger.Error("proof: depot version lookup failed for %s@%d: %v", p.DepotID, p.Version, err)
		return auth.ErrNodeNotFound
	}
	if !found {
		return auth.ErrNodeNotFound
	}

	granted, err := v.depots.HasAccess(p.DepotID, capCtx.DelegateID)
	if err != nil {
		v.logger.Error("proof: depot access lookup failed for %s: %v", p.DepotID, err)
		return auth.ErrDepotAccessDenied
	}
	if !granted {
		return auth.ErrDepotAccessDenied
	}

	return v.walk(capCtx.Realm, rootHash, p.Path, nodeHash)
}

// walk follows child indices from current and requires arrival at target.
func (v *Validator) walk(realm, current string, path []int, target string) *auth.Error {
	for _, idx := range path {
		children, found, err := v.nodes.ResolveChildren(realm, current)
		if err != nil {
			v.logger.Error("proof: node resolution failed for %s: %v", current, err)
			return auth.ErrNodeNotFound
		}
		if !found {
			return auth.ErrNodeNotFound
		}
		if idx >= len(children) {
			return auth.ErrNodeNotFound
		}
		current = children[idx]
	}
	if current != target {
		return auth.ErrNodeNotInScope
	}
	return nil
}
