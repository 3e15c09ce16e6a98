package auth

import (
	"errors"
	"net/http"

	"casgate/internal/constants"
)

// Error is a terminal authorization failure: a stable wire code plus the
// HTTP status it maps to. Message is for logs only and never sent on the
// wire.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Request authentication failures.
var (
	ErrUnauthorized         = &Error{Code: constants.ErrCodeUnauthorized, Status: http.StatusUnauthorized}
	ErrTokenExpired         = &Error{Code: constants.ErrCodeTokenExpired, Status: http.StatusUnauthorized}
	ErrTokenInvalid         = &Error{Code: constants.ErrCodeTokenInvalid, Status: http.StatusUnauthorized}
	ErrForbidden            = &Error{Code: constants.ErrCodeForbidden, Status: http.StatusForbidden}
	ErrRootDelegateNotFound = &Error{Code: constants.ErrCodeRootDelegateNotFound, Status: http.StatusUnauthorized}
	ErrDelegateNotFound     = &Error{Code: constants.ErrCodeDelegateNotFound, Status: http.StatusUnauthorized}
	ErrDelegateRevoked      = &Error{Code: constants.ErrCodeDelegateRevoked, Status: http.StatusUnauthorized}
	ErrDelegateExpired      = &Error{Code: constants.ErrCodeDelegateExpired, Status: http.StatusUnauthorized}
)

// Proof validation failures.
var (
	ErrProofRequired      = &Error{Code: constants.ErrCodeProofRequired, Status: http.StatusForbidden}
	ErrNodeNotInScope     = &Error{Code: constants.ErrCodeNodeNotInScope, Status: http.StatusForbidden}
	ErrInvalidProofFormat = &Error{Code: constants.ErrCodeInvalidProofFormat, Status: http.StatusBadRequest}
	ErrNodeNotFound       = &Error{Code: constants.ErrCodeNodeNotFound, Status: http.StatusNotFound}
	ErrDepotAccessDenied  = &Error{Code: constants.ErrCodeDepotAccessDenied, Status: http.StatusForbidden}
)

// PermissionEscalation builds a creation-time escalation failure naming
// the offending permission field.
func PermissionEscalation(field string) *Error {
	return &Error{
		Code:    constants.ErrCodePermissionEscalation,
		Status:  http.StatusForbidden,
		Message: "child requests " + field + " but parent lacks it",
	}
}

// DepthExceeded builds the creation-time depth failure.
func DepthExceeded() *Error {
	return &Error{
		Code:    constants.ErrCodeDepthExceeded,
		Status:  http.StatusBadRequest,
		Message: "delegation tree depth limit reached",
	}
}

// ExpiresAfterParent builds the creation-time expiry failure.
func ExpiresAfterParent() *Error {
	return &Error{
		Code:    constants.ErrCodeExpiresAfterParent,
		Status:  http.StatusBadRequest,
		Message: "child expiry must not exceed a bounded parent's",
	}
}

// DelegatedDepotsEscalation builds the creation-time depot-subset failure
// naming the first depot the parent does not hold.
func DelegatedDepotsEscalation(depotID string) *Error {
	return &Error{
		Code:    constants.ErrCodeDelegatedDepotsEscalation,
		Status:  http.StatusForbidden,
		Message: "depot " + depotID + " is not delegated to the parent",
	}
}
