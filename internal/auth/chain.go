package auth

import "casgate/internal/constants"

// Chain helpers and creation-time validators. All functions here are pure:
// they never touch storage and never mutate their inputs.

// BuildRootChain returns the single-entry chain of a realm root.
func BuildRootChain(selfID string) []string {
	return []string{selfID}
}

// BuildChain returns parentChain with childID appended. The parent chain
// is copied, never mutated.
func BuildChain(parentChain []string, childID string) []string {
	chain := make([]string, len(parentChain)+1)
	copy(chain, parentChain)
	chain[len(parentChain)] = childID
	return chain
}

// IsAncestor reports whether id occurs anywhere in chain. A delegate
// counts as its own ancestor.
func IsAncestor(id string, chain []string) bool {
	for _, entry := range chain {
		if entry == id {
			return true
		}
	}
	return false
}

// ChainDepth returns the delegation depth encoded by a chain.
func ChainDepth(chain []string) int {
	return len(chain) - 1
}

// IsChainValid reports whether a chain is structurally sound: non-empty,
// within the depth bound, and made of unique non-empty ids.
func IsChainValid(chain []string) bool {
	if len(chain) == 0 || len(chain) > constants.MaxDepth+1 {
		return false
	}
	seen := make(map[string]bool, len(chain))
	for _, id := range chain {
		if id == "" || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// IsDirectChildChain reports whether child is parent plus exactly one
// appended id.
func IsDirectChildChain(parent, child []string) bool {
	if len(child) != len(parent)+1 {
		return false
	}
	for i := range parent {
		if child[i] != parent[i] {
			return false
		}
	}
	return true
}

// ValidatePermissions rejects any child permission the parent does not
// hold. Permissions only narrow down the tree.
func ValidatePermissions(parent *Delegate, input *CreateDelegateInput) *Error {
	if input.CanUpload && !parent.CanUpload {
		return PermissionEscalation("can_upload")
	}
	if input.CanManageDepot && !parent.CanManageDepot {
		return PermissionEscalation("can_manage_depot")
	}
	return nil
}

// ValidateDepth rejects creation under a parent already at the depth bound.
func ValidateDepth(parentDepth int) *Error {
	if parentDepth >= constants.MaxDepth {
		return DepthExceeded()
	}
	return nil
}

// ValidateExpiresAt enforces bounded-parent expiry narrowing: an unbounded
// parent accepts anything; a bounded parent requires a bounded child that
// does not outlive it.
func ValidateExpiresAt(parentExpiresAt, childExpiresAt *int64) *Error {
	if parentExpiresAt == nil {
		return nil
	}
	if childExpiresAt == nil || *childExpiresAt > *parentExpiresAt {
		return ExpiresAfterParent()
	}
	return nil
}

// ValidateDelegatedDepots enforces depot-subset narrowing. A nil or empty
// child list inherits the parent's constraint unchanged; a nil parent set
// means the parent is unconstrained and accepts any restriction;
// otherwise every entry must be delegated to the parent.
func ValidateDelegatedDepots(parentDepots map[string]bool, childDepots []string) *Error {
	if len(childDepots) == 0 || parentDepots == nil {
		return nil
	}
	for _, depotID := range childDepots {
		if !parentDepots[depotID] {
			return DelegatedDepotsEscalation(depotID)
		}
	}
	return nil
}

// ValidateCreateDelegate runs the full creation-time check in fixed
// order: depth, permissions, expiry, delegated depots. The first failure
// wins.
func ValidateCreateDelegate(parent *Delegate, input *CreateDelegateInput, parentDepots map[string]bool) *Error {
	if err := ValidateDepth(parent.Depth); err != nil {
		return err
	}
	if err := ValidatePermissions(parent, input); err != nil {
		return err
	}
	if err := ValidateExpiresAt(parent.ExpiresAt, input.ExpiresAt); err != nil {
		return err
	}
	if err := ValidateDelegatedDepots(parentDepots, input.DelegatedDepots); err != nil {
		return err
	}
	return nil
}
