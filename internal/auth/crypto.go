package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"

	"casgate/internal/constants"
	"casgate/internal/ident"
)

// Hash derivations. Every derived hash is 32 bytes of BLAKE3 over a
// domain-prefixed input, so values from different namespaces can never
// collide.

// ComputeUserIDHash derives the 32-byte hash of a bootstrap identity.
func ComputeUserIDHash(userID string) []byte {
	sum := blake3.Sum256([]byte("user:" + userID))
	return sum[:]
}

// ComputeRealmHash derives the 32-byte hash of a realm name.
func ComputeRealmHash(realm string) []byte {
	sum := blake3.Sum256([]byte("realm:" + realm))
	return sum[:]
}

// ComputeDelegateIDHash derives the 32-byte hash of a delegate id. This
// value is embedded as the token issuer field and indexed for lookup.
func ComputeDelegateIDHash(delegateID string) []byte {
	sum := blake3.Sum256([]byte("delegate:" + delegateID))
	return sum[:]
}

// ComputeScopeHash derives the 32-byte hash of a scope-root set. Roots
// are sorted before hashing so the result is independent of input order:
// scope is a set, not a sequence.
func ComputeScopeHash(roots []string) []byte {
	var input string
	switch len(roots) {
	case 0:
		input = "scope:empty"
	case 1:
		input = "scope:" + roots[0]
	default:
		sorted := make([]string, len(roots))
		copy(sorted, roots)
		sort.Strings(sorted)
		input = "scope:" + strings.Join(sorted, ",")
	}
	sum := blake3.Sum256([]byte(input))
	return sum[:]
}

// HashTokenBytes computes the hex BLAKE3 content hash of raw token bytes.
// Only this hash is ever stored; the token plaintext never is.
func HashTokenBytes(token []byte) string {
	sum := blake3.Sum256(token)
	return hex.EncodeToString(sum[:])
}

// ComputeTokenID derives the canonical text id of a token: the dlt1_
// prefix plus 26 base32 chars of the first 128 bits of its BLAKE3 hash.
func ComputeTokenID(token []byte) string {
	sum := blake3.Sum256(token)
	return constants.TokenIDPrefix + ident.Encode(sum[:16])
}

// ConstantTimeEqualHex compares a computed hex hash against a recorded
// one without leaking the mismatch position through timing.
func ConstantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// PossessionKey derives the 32-byte proof-of-possession key for one
// delegate in one realm via HKDF-SHA256. The key binds possession tags to
// the claiming delegate, so a tag computed by one delegate cannot be
// replayed by another.
func PossessionKey(realm, delegateID string) ([]byte, error) {
	ikm := append(ComputeRealmHash(realm), []byte(delegateID)...)
	reader := hkdf.New(sha256.New, ikm, nil, []byte("casgate-pop-v1"))

	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive possession key: %w", err)
	}
	return key, nil
}

// PossessionTag computes the keyed BLAKE3 tag over node content proving
// the caller holds the bytes, not merely their hash.
func PossessionTag(key, content []byte) (string, error) {
	hasher, err := blake3.NewKeyed(key)
	if err != nil {
		return "", fmt.Errorf("failed to create keyed hasher: %w", err)
	}
	hasher.Write(content)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
