// internal/core/auth/errors.go
package auth

import "errors"

// All failures map to UNAUTHENTICATED; messages never confirm which secret exists.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
)
