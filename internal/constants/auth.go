package constants

import "time"

// Delegation tree bounds
const (
	RootDepth = 0
	MaxDepth  = 15
)

// Capability token binary layout (big-endian, 128 bytes total)
const (
	TokenSize = 128

	TokenMagicOffset    = 0  // 4 bytes
	TokenFlagsOffset    = 4  // 1 byte
	TokenReservedOffset = 5  // 3 bytes, zero
	TokenTTLOffset      = 8  // 8 bytes: uint64 ms epoch, 0 for refresh tokens
	TokenQuotaOffset    = 16 // 8 bytes: reserved for future use
	TokenSaltOffset     = 24 // 8 bytes: random
	TokenIssuerOffset   = 32 // 32 bytes: issuing principal hash
	TokenRealmOffset    = 64 // 32 bytes: realm hash
	TokenScopeOffset    = 96 // 32 bytes: scope root set hash
	TokenHashFieldSize  = 32
)

// TokenMagic identifies the canonical token generation ("CGT1").
var TokenMagic = []byte{'C', 'G', 'T', '1'}

// Token flag bits
const (
	TokenFlagDelegate       = 1 << 0
	TokenFlagUserIssued     = 1 << 1
	TokenFlagCanUpload      = 1 << 2
	TokenFlagCanManageDepot = 1 << 3
	TokenDepthShift         = 4 // bits 4-7 carry depth 0-15
)

// Text ID encoding
const (
	DelegateIDPrefix = "dlt_"
	TokenIDPrefix    = "dlt1_"
	TextIDLength     = 26 // 128 bits in base32
)

// Token lifetimes
const (
	AccessTokenTTL = 1 * time.Hour // refresh tokens carry no TTL
)

// Authorization roles (bootstrap identity → role store)
const (
	RoleAuthorized   = "authorized"
	RoleUnauthorized = "unauthorized"
	RoleAdmin        = "admin"
)

// Audit event actions
const (
	AuditRootCreated     = "root_created"
	AuditDelegateCreated = "delegate_created"
	AuditDelegateRevoked = "delegate_revoked"
	AuditTokensRotated   = "tokens_rotated"
	AuditAccessDenied    = "access_denied"
	AuditClaimAccepted   = "claim_accepted"
	AuditClaimRejected   = "claim_rejected"
)
