// Package jwt signs and verifies the session token carried in the session
// cookie.
//
// A session token is a self-contained JWT holding the user's id, email, full
// name and picture. It is re-issued on every refresh, so its lifetime slides
// with activity. HS256 (shared secret) and Ed25519 are supported; verification
// pins the configured algorithm and optionally the issuer, audience and kid.
//
// # What this package must NOT do
//
//   - Read users or any other persisted state.
//   - Import goSession or any sibling package.
package jwt
