package constants

// API Error Codes - request authentication
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid         = "TOKEN_INVALID"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeRootDelegateNotFound = "ROOT_DELEGATE_NOT_FOUND"
	ErrCodeDelegateNotFound     = "DELEGATE_NOT_FOUND"
	ErrCodeDelegateRevoked      = "DELEGATE_REVOKED"
	ErrCodeDelegateExpired      = "DELEGATE_EXPIRED"
)

// API Error Codes - proof validation
const (
	ErrCodeProofRequired      = "PROOF_REQUIRED"
	ErrCodeNodeNotInScope     = "NODE_NOT_IN_SCOPE"
	ErrCodeInvalidProofFormat = "INVALID_PROOF_FORMAT"
	ErrCodeNodeNotFound       = "NODE_NOT_FOUND"
	ErrCodeDepotAccessDenied  = "DEPOT_ACCESS_DENIED"
)

// API Error Codes - delegate creation validators
const (
	ErrCodePermissionEscalation      = "PERMISSION_ESCALATION"
	ErrCodeDepthExceeded             = "DEPTH_EXCEEDED"
	ErrCodeExpiresAfterParent        = "EXPIRES_AFTER_PARENT"
	ErrCodeDelegatedDepotsEscalation = "DELEGATED_DEPOTS_ESCALATION"
)

// API Error Codes - general
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInvalidHash    = "INVALID_HASH"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAlreadyExists  = "ALREADY_EXISTS"
	ErrCodeClaimRejected  = "CLAIM_REJECTED"
)
