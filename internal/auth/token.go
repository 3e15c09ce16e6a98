package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"casgate/internal/constants"
)

// Binary capability token codec. One canonical generation: a fixed
// 128-byte big-endian layout carrying the issuer, realm, and scope hashes
// plus issuance flags. The flag bits echo issuance state; authorization
// always re-reads the live delegate record.

// GenerateToken packs TokenOptions into a fresh 128-byte token with a
// random salt. All three hash fields must be exactly 32 bytes.
func GenerateToken(opts TokenOptions) ([]byte, error) {
	for _, field := range []struct {
		name string
		val  []byte
	}{
		{"issuer", opts.IssuerHash},
		{"realm", opts.RealmHash},
		{"scope", opts.ScopeHash},
	} {
		if len(field.val) != constants.TokenHashFieldSize {
			return nil, fmt.Errorf("%s hash must be %d bytes, got %d",
				field.name, constants.TokenHashFieldSize, len(field.val))
		}
	}
	if opts.Depth < 0 || opts.Depth > constants.MaxDepth {
		return nil, fmt.Errorf("depth must be 0..%d, got %d", constants.MaxDepth, opts.Depth)
	}

	token := make([]byte, constants.TokenSize)
	copy(token[constants.TokenMagicOffset:], constants.TokenMagic)

	var flags byte
	if opts.IsDelegate {
		flags |= constants.TokenFlagDelegate
	}
	if opts.IsUserIssued {
		flags |= constants.TokenFlagUserIssued
	}
	if opts.CanUpload {
		flags |= constants.TokenFlagCanUpload
	}
	if opts.CanManageDepot {
		flags |= constants.TokenFlagCanManageDepot
	}
	flags |= byte(opts.Depth) << constants.TokenDepthShift
	token[constants.TokenFlagsOffset] = flags

	binary.BigEndian.PutUint64(token[constants.TokenTTLOffset:], opts.TTL)
	binary.BigEndian.PutUint64(token[constants.TokenQuotaOffset:], opts.Quota)

	if _, err := rand.Read(token[constants.TokenSaltOffset : constants.TokenSaltOffset+8]); err != nil {
		return nil, fmt.Errorf("failed to generate token salt: %w", err)
	}

	copy(token[constants.TokenIssuerOffset:], opts.IssuerHash)
	copy(token[constants.TokenRealmOffset:], opts.RealmHash)
	copy(token[constants.TokenScopeOffset:], opts.ScopeHash)

	return token, nil
}

// DecodeToken unpacks a binary token. It requires exactly 128 bytes and
// the correct magic.
func DecodeToken(token []byte) (*DecodedToken, error) {
	if len(token) != constants.TokenSize {
		return nil, fmt.Errorf("token must be %d bytes, got %d", constants.TokenSize, len(token))
	}
	if !bytes.Equal(token[constants.TokenMagicOffset:constants.TokenMagicOffset+4], constants.TokenMagic) {
		return nil, fmt.Errorf("unrecognized token magic")
	}

	flags := token[constants.TokenFlagsOffset]
	decoded := &DecodedToken{
		IsDelegate:     flags&constants.TokenFlagDelegate != 0,
		IsUserIssued:   flags&constants.TokenFlagUserIssued != 0,
		CanUpload:      flags&constants.TokenFlagCanUpload != 0,
		CanManageDepot: flags&constants.TokenFlagCanManageDepot != 0,
		Depth:          int(flags >> constants.TokenDepthShift),
		TTL:            binary.BigEndian.Uint64(token[constants.TokenTTLOffset:]),
		Quota:          binary.BigEndian.Uint64(token[constants.TokenQuotaOffset:]),
		Salt:           append([]byte(nil), token[constants.TokenSaltOffset:constants.TokenSaltOffset+8]...),
		IssuerHash:     append([]byte(nil), token[constants.TokenIssuerOffset:constants.TokenIssuerOffset+32]...),
		RealmHash:      append([]byte(nil), token[constants.TokenRealmOffset:constants.TokenRealmOffset+32]...),
		ScopeHash:      append([]byte(nil), token[constants.TokenScopeOffset:constants.TokenScopeOffset+32]...),
	}
	return decoded, nil
}

// IsValidTokenFormat is a cheap magic-only probe. It never errors.
func IsValidTokenFormat(token []byte) bool {
	return len(token) == constants.TokenSize &&
		bytes.Equal(token[constants.TokenMagicOffset:constants.TokenMagicOffset+4], constants.TokenMagic)
}
