package auth

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"casgate/internal/constants"
	"casgate/internal/logger"
)

// contextKey is an unexported type for context keys in this package.
type contextKey int

const capabilityContextKey contextKey = iota

// DelegateSource is the delegate lookup surface the middleware needs.
type DelegateSource interface {
	GetByIDHash(idHashHex string) (*Delegate, error)
	GetRootByRealm(realm string) (*Delegate, error)
}

// RoleSource resolves the authorization role of a bootstrap identity.
type RoleSource interface {
	GetRole(subject string) (string, error)
}

// Middleware converts an inbound bearer credential into a verified
// capability Context. One pass per request, fully short-circuiting, no
// side effects: on any failure the downstream handler never executes.
type Middleware struct {
	delegates DelegateSource
	roles     RoleSource
	verifier  BootstrapVerifier
	logger    *logger.Logger
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(delegates DelegateSource, roles RoleSource, verifier BootstrapVerifier, log *logger.Logger) *Middleware {
	return &Middleware{delegates: delegates, roles: roles, verifier: verifier, logger: log}
}

// credentialKind tags the classified bearer credential.
type credentialKind int

const (
	credentialBootstrap credentialKind = iota
	credentialDelegateToken
)

// credential is the tagged result of classifying the bearer value:
// either a bootstrap identity JWT or a base64 binary access token.
type credential struct {
	kind credentialKind
	raw  string
}

// classify decides which verification path a bearer value takes. Three
// dot-separated segments read as a bootstrap JWT; anything else is
// treated as a base64 binary token.
func classify(bearer string) credential {
	if parts := strings.Split(bearer, "."); len(parts) == 3 {
		return credential{kind: credentialBootstrap, raw: bearer}
	}
	return credential{kind: credentialDelegateToken, raw: bearer}
}

// Authenticate runs the full verification state machine over one
// Authorization header value.
func (m *Middleware) Authenticate(authHeader string) (*Context, *Error) {
	if !strings.HasPrefix(authHeader, constants.AuthBearerPrefix) {
		return nil, ErrUnauthorized
	}
	bearer := strings.TrimPrefix(authHeader, constants.AuthBearerPrefix)
	if bearer == "" {
		return nil, ErrUnauthorized
	}

	cred := classify(bearer)
	switch cred.kind {
	case credentialBootstrap:
		return m.authenticateBootstrap(cred.raw)
	default:
		return m.authenticateDelegate(cred.raw)
	}
}

// authenticateBootstrap verifies a bootstrap identity JWT and resolves it
// to the realm's root delegate. This path never creates the root.
func (m *Middleware) authenticateBootstrap(raw string) (*Context, *Error) {
	claim, err := m.verifier.Verify(raw)
	if err != nil || claim == nil {
		m.logger.Debug("auth: bootstrap verification failed: %v", err)
		return nil, ErrUnauthorized
	}

	now := time.Now().UnixMilli()
	if claim.ExpiresAt != nil && *claim.ExpiresAt < now {
		return nil, ErrTokenExpired
	}

	role, err := m.roles.GetRole(claim.Subject)
	if err != nil {
		m.logger.Error("auth: role lookup failed for %s: %v", claim.Subject, err)
		return nil, ErrUnauthorized
	}
	if role == constants.RoleUnauthorized {
		return nil, ErrForbidden
	}

	realm := claim.Subject
	root, err := m.delegates.GetRootByRealm(realm)
	if err != nil {
		m.logger.Error("auth: root delegate lookup failed for realm %s: %v", realm, err)
		return nil, ErrUnauthorized
	}
	if root == nil {
		return nil, ErrRootDelegateNotFound
	}
	if root.IsRevoked {
		return nil, ErrDelegateRevoked
	}

	return &Context{
		Type:           ContextTypeBootstrap,
		Realm:          realm,
		DelegateID:     root.DelegateID,
		Delegate:       root,
		CanUpload:      root.CanUpload,
		CanManageDepot: root.CanManageDepot,
		IssuerChain:    BuildRootChain(root.DelegateID),
	}, nil
}

// authenticateDelegate verifies a base64 binary access token against the
// live delegate record.
func (m *Middleware) authenticateDelegate(raw string) (*Context, *Error) {
	tokenBytes, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrUnauthorized
	}

	decoded, err := DecodeToken(tokenBytes)
	if err != nil {
		return nil, ErrUnauthorized
	}

	delegate, err := m.delegates.GetByIDHash(hex.EncodeToString(decoded.IssuerHash))
	if err != nil {
		m.logger.Error("auth: delegate lookup failed: %v", err)
		return nil, ErrUnauthorized
	}
	if delegate == nil {
		return nil, ErrDelegateNotFound
	}
	if delegate.IsRevoked {
		return nil, ErrDelegateRevoked
	}

	now := time.Now().UnixMilli()
	if delegate.Expired(now) {
		return nil, ErrDelegateExpired
	}
	if !ConstantTimeEqualHex(HashTokenBytes(tokenBytes), delegate.CurrentATHash) {
		return nil, ErrTokenInvalid
	}
	if delegate.ATExpiresAt < now {
		return nil, ErrTokenExpired
	}

	return &Context{
		Type:           ContextTypeDelegate,
		Realm:          delegate.Realm,
		DelegateID:     delegate.DelegateID,
		Delegate:       delegate,
		CanUpload:      delegate.CanUpload,
		CanManageDepot: delegate.CanManageDepot,
		IssuerChain:    delegate.Chain,
		TokenBytes:     tokenBytes,
	}, nil
}

// Protect wraps a handler so it only runs with a verified capability
// context on the request.
func (m *Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capCtx, authErr := m.Authenticate(r.Header.Get(constants.HeaderAuthorization))
		if authErr != nil {
			WriteWireError(w, authErr)
			return
		}
		ctx := context.WithValue(r.Context(), capabilityContextKey, capCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromRequest retrieves the verified capability context, if any.
func FromRequest(r *http.Request) (*Context, bool) {
	capCtx, ok := r.Context().Value(capabilityContextKey).(*Context)
	return capCtx, ok && capCtx != nil
}

// WriteWireError writes the exact wire error body {"error":"<CODE>"} with
// the error's HTTP status.
func WriteWireError(w http.ResponseWriter, authErr *Error) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(authErr.Status)
	json.NewEncoder(w).Encode(map[string]string{"error": authErr.Code})
}
