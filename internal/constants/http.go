package constants

import "time"

// HTTP Server Timeouts
const (
	HTTPIdleTimeoutSecs = 120
	HTTPIdleTimeout     = HTTPIdleTimeoutSecs * time.Second
	HTTPReadTimeout     = 60 * time.Second
	HTTPWriteTimeout    = 60 * time.Second
)

// Content Types
const (
	ContentTypeJSON = "application/json"
)

// HTTP Header Names
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderProof         = "X-CAS-Proof"
)

// Bearer credential prefix
const (
	AuthBearerPrefix = "Bearer "
)
