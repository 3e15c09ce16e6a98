package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// BootstrapVerifier checks a bootstrap identity credential and returns its
// verified claim. Implementations return an error for any credential whose
// signature or structure does not check out; expiry is reported through
// the claim so the middleware can distinguish TOKEN_EXPIRED from
// UNAUTHORIZED.
type BootstrapVerifier interface {
	Verify(credential string) (*IdentityClaim, error)
}

// JWTVerifier verifies HS256-signed bootstrap JWTs issued by the identity
// provider. The subject claim names the realm owner.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the given shared secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and signature-checks the credential. Claim expiry is not
// enforced here; it is surfaced on the returned IdentityClaim.
func (v *JWTVerifier) Verify(credential string) (*IdentityClaim, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("bootstrap credential rejected: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("bootstrap credential invalid")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("bootstrap credential has no subject")
	}

	claim := &IdentityClaim{Subject: subject}
	if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
		ms := exp.UnixMilli()
		claim.ExpiresAt = &ms
	}
	return claim, nil
}
