// Package proof parses and evaluates access proofs: index paths that
// demonstrate a node is reachable from a scope root or a depot version
// the caller may see.
package proof

import (
	"strconv"
	"strings"

	"casgate/internal/auth"
)

// Kind distinguishes the two proof grammars.
type Kind int

const (
	// KindIndexPath anchors the walk at one of the delegate's scope roots.
	KindIndexPath Kind = iota
	// KindDepot anchors the walk at a published depot version root.
	KindDepot
)

const (
	indexPathPrefix = "ipath#"
	depotPrefix     = "depot:"
)

// Proof is one parsed access proof.
type Proof struct {
	Kind    Kind
	DepotID string // depot proofs only
	Version int64  // depot proofs only
	Path    []int  // child indices; for index paths, Path[0] selects the scope root
}

// Parse decodes a proof string. The grammar is strict: decimal digits
// only, no signs, no whitespace, no empty segments. Leading zeros are
// accepted ("07" reads as 7).
//
//	ipath#i0:i1:...:iN
//	depot:<id>@<version>[#i0:i1:...:iN]
func Parse(raw string) (*Proof, *auth.Error) {
	switch {
	case strings.HasPrefix(raw, indexPathPrefix):
		path, ok := parsePath(raw[len(indexPathPrefix):])
		if !ok || len(path) == 0 {
			return nil, auth.ErrInvalidProofFormat
		}
		return &Proof{Kind: KindIndexPath, Path: path}, nil

	case strings.HasPrefix(raw, depotPrefix):
		return parseDepot(raw[len(depotPrefix):])

	default:
		return nil, auth.ErrInvalidProofFormat
	}
}

func parseDepot(rest string) (*Proof, *auth.Error) {
	at := strings.IndexByte(rest, '@')
	if at <= 0 {
		return nil, auth.ErrInvalidProofFormat
	}
	depotID := rest[:at]
	rest = rest[at+1:]

	versionStr := rest
	var pathStr string
	hasPath := false
	if hash := strings.IndexByte(rest, '#'); hash >= 0 {
		versionStr = rest[:hash]
		pathStr = rest[hash+1:]
		hasPath = true
	}

	version, ok := parseUint(versionStr)
	if !ok {
		return nil, auth.ErrInvalidProofFormat
	}

	p := &Proof{Kind: KindDepot, DepotID: depotID, Version: int64(version)}
	if hasPath {
		path, ok := parsePath(pathStr)
		if !ok {
			return nil, auth.ErrInvalidProofFormat
		}
		p.Path = path
	}
	return p, nil
}

// parsePath decodes a colon-separated index list. An empty string or any
// empty, signed, or non-digit segment fails.
func parsePath(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}
	segments := strings.Split(s, ":")
	path := make([]int, len(segments))
	for i, segment := range segments {
		v, ok := parseUint(segment)
		if !ok {
			return nil, false
		}
		path[i] = int(v)
	}
	return path, true
}

// parseUint accepts only plain decimal digits. strconv's sign and
// whitespace tolerance is exactly what the grammar forbids.
func parseUint(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}
