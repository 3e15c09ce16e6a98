// Package dag stores the content-addressed node graph. Nodes are
// immutable: the hash is BLAKE3 over the content bytes, and the ordered
// child list is fixed at insert time.
package dag

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"casgate/internal/constants"
)

// EmptyNodeHash is the well-known hash of zero-length content. Every
// principal implicitly possesses the empty node, so it never gates access.
const EmptyNodeHash = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

// Node is one immutable DAG node.
type Node struct {
	Realm     string   `json:"realm"`
	Hash      string   `json:"hash"`
	Children  []string `json:"children"` // ordered, empty for leaves
	Size      int64    `json:"size"`
	CreatedAt int64    `json:"created_at"` // unix ms
	Content   []byte   `json:"-"`
}

// IsLeaf reports whether the node references no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// ComputeNodeHash derives the canonical hex hash of node content.
func ComputeNodeHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Resolver is the node lookup surface index-path walks need: the ordered
// child list of one node, plus whether the node exists at all.
type Resolver interface {
	ResolveChildren(realm, hash string) (children []string, found bool, err error)
}

// ValidateNodeInput checks insert-time bounds before any hashing.
func ValidateNodeInput(content []byte, children []string) error {
	if len(content) > constants.MaxNodeBytes {
		return fmt.Errorf("node content exceeds %d bytes", constants.MaxNodeBytes)
	}
	if len(children) > constants.MaxNodeChildren {
		return fmt.Errorf("node references %d children, limit is %d", len(children), constants.MaxNodeChildren)
	}
	for _, child := range children {
		if len(child) != constants.HashLength {
			return fmt.Errorf("child reference %q is not a %d-char hash", child, constants.HashLength)
		}
	}
	return nil
}
