// Package session holds the request-scoped session view and the cookie that
// carries the session token.
//
// A [Session] is a read-only projection of verified token claims. It is
// rebuilt on every request and owns no state of its own.
//
// # Cookie
//
// The cookie is named "next-session-token", prefixed with "__Secure-" when
// served over TLS. It is HttpOnly, SameSite=Lax and Path=/, and is scoped to
// the configured domain only on secure deployments.
package session
