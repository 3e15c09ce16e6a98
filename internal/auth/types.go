// Package auth implements the capability layer: the delegate chain
// validator, the binary token codec and hash derivations, the request
// authentication middleware, and the delegate lifecycle service.
// Authoritative permissions always come from the live delegate record;
// token bytes only identify which delegate issued them.
package auth

// Delegate is a capability principal within one realm. Delegates form a
// depth-bounded tree; each row holds its full ancestor-id chain, so
// ancestor and depth checks are plain sequence operations.
type Delegate struct {
	DelegateID      string   `json:"delegate_id"`
	Realm           string   `json:"realm"`
	ParentID        *string  `json:"parent_id,omitempty"` // nil only for the root
	Chain           []string `json:"chain"`               // ancestor ids, self included
	Depth           int      `json:"depth"`               // len(Chain)-1
	CanUpload       bool     `json:"can_upload"`
	CanManageDepot  bool     `json:"can_manage_depot"`
	DelegatedDepots []string `json:"delegated_depots,omitempty"` // nil = no constraint narrower than parent
	ScopeRoots      []string `json:"scope_roots"`
	IsRevoked       bool     `json:"is_revoked"`
	RevokedAt       *int64   `json:"revoked_at,omitempty"`
	CreatedAt       int64    `json:"created_at"`           // unix ms
	ExpiresAt       *int64   `json:"expires_at,omitempty"` // unix ms, nil = unbounded
	CurrentRTHash   string   `json:"-"`                    // hex BLAKE3 of valid refresh-token bytes
	CurrentATHash   string   `json:"-"`                    // hex BLAKE3 of valid access-token bytes
	ATExpiresAt     int64    `json:"-"`                    // unix ms
}

// IsRoot reports whether this delegate is its realm's root.
func (d *Delegate) IsRoot() bool {
	return d.ParentID == nil
}

// Expired reports whether the delegate record itself has expired at the
// given unix-ms instant.
func (d *Delegate) Expired(nowMs int64) bool {
	return d.ExpiresAt != nil && *d.ExpiresAt < nowMs
}

// ContextType distinguishes how a request context was established.
type ContextType string

const (
	ContextTypeBootstrap ContextType = "bootstrap"
	ContextTypeDelegate  ContextType = "delegate"
)

// Context is the verified capability context of one request. It is
// request-scoped and never persisted.
type Context struct {
	Type           ContextType
	Realm          string
	DelegateID     string
	Delegate       *Delegate
	CanUpload      bool
	CanManageDepot bool
	IssuerChain    []string
	TokenBytes     []byte // empty for bootstrap-derived contexts
}

// Depth returns the delegation depth of the context's delegate.
func (c *Context) Depth() int {
	return len(c.IssuerChain) - 1
}

// TokenRole distinguishes the two issued token roles.
type TokenRole string

const (
	TokenRoleRefresh TokenRole = "refresh"
	TokenRoleAccess  TokenRole = "access"
)

// TokenOptions describes one token to generate.
type TokenOptions struct {
	IsDelegate     bool
	IsUserIssued   bool
	CanUpload      bool
	CanManageDepot bool
	Depth          int    // 0..15
	TTL            uint64 // unix ms expiry; 0 for refresh tokens
	Quota          uint64 // reserved
	IssuerHash     []byte // 32 bytes
	RealmHash      []byte // 32 bytes
	ScopeHash      []byte // 32 bytes
}

// DecodedToken holds all fields unpacked from a binary token.
type DecodedToken struct {
	IsDelegate     bool
	IsUserIssued   bool
	CanUpload      bool
	CanManageDepot bool
	Depth          int
	TTL            uint64
	Quota          uint64
	Salt           []byte // 8 bytes
	IssuerHash     []byte // 32 bytes
	RealmHash      []byte // 32 bytes
	ScopeHash      []byte // 32 bytes
}

// CreateDelegateInput carries the requested properties of a new child
// delegate, validated against its parent before creation.
type CreateDelegateInput struct {
	CanUpload       bool     `json:"can_upload"`
	CanManageDepot  bool     `json:"can_manage_depot"`
	ExpiresAt       *int64   `json:"expires_at,omitempty"` // unix ms
	DelegatedDepots []string `json:"delegated_depots,omitempty"`
	ScopeRoots      []string `json:"scope_roots"`
}

// IdentityClaim is the verified result of a bootstrap credential check.
type IdentityClaim struct {
	Subject   string
	ExpiresAt *int64 // unix ms, nil when the claim carries no expiry
}

// IssuedTokens is the show-once result of token issuance or rotation.
type IssuedTokens struct {
	RefreshToken   string `json:"refresh_token"` // base64
	AccessToken    string `json:"access_token"`  // base64
	RefreshTokenID string `json:"refresh_token_id"`
	AccessTokenID  string `json:"access_token_id"`
	ATExpiresAt    int64  `json:"at_expires_at"` // unix ms
}
