// Package session implements wishd's session subsystem.
//
// A session is a time-bounded proof of an authenticated principal,
// represented by an opaque 128-bit token held by the client. The server
// stores only a digest of the token (see security/token). Each principal
// may hold a bounded number of live sessions; creating a session beyond
// the cap evicts the oldest one by overwriting its row in place, inside a
// serializable transaction so concurrent creations cannot overshoot the
// cap.
package session
