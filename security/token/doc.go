// Package token is the single source of truth for wishd's opaque tokens.
//
// Both session tokens and rate-tracker tokens share one grammar: 16 random
// bytes encoded as 22 characters of unpadded base64url. The server never
// stores a session token in plaintext; it stores a 64-char hex digest
// (SHA-256 by default, HMAC-SHA256 when a key is configured).
//
// Environment:
// - WISHD_TOKEN_HMAC_KEY: when set, enables HMAC mode for stored digests.
package token
