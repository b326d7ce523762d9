package token

import "errors"

// Public, stable errors for callers.
var (
	ErrMalformed       = errors.New("malformed token")
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
)
