// Package goSession authenticates users by email and password or through an
// OAuth provider, and carries the result in a signed, stateless session token.
//
// An [Engine] is assembled once through [Builder.Build] and is safe for
// concurrent use afterwards. Per request the token is refreshed with
// [Engine.Refresh], which re-reads the user so renamed users pick up their
// new profile and deleted users lose their session, and turned into a
// [session.Session] with [Engine.Materialize].
//
// # Architecture boundaries
//
// goSession is the public surface: [Engine], [Builder], [Config], the
// [UserProvider] persistence boundary and the [TokenRefresh],
// [SessionProjection] and [RedirectPolicy] callbacks. Flow orchestration,
// the login throttle and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Tell end users why a login failed. All credential outcomes satisfy
//     [IsAuthFailure] and must be shown as the same generic failure.
//   - Return password hashes or plaintext in results, errors or audit
//     events.
//   - Keep server-side session state. Sign-out only clears the cookie.
package goSession
