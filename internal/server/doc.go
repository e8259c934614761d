// Package server wires the engine, middleware and gate into the HTTP routes
// served by gosession-server.
//
//	GET  /login                          sign-in form
//	POST /api/auth/callback/credentials  email and password sign-in
//	GET  /api/auth/signin/{provider}     start an OAuth flow
//	GET  /api/auth/callback/{provider}   finish an OAuth flow
//	GET  /api/auth/session               current session as JSON
//	GET  /api/auth/providers             configured OAuth providers
//	POST /api/auth/signout               end the session
//	GET  /protected                      gated page
//	GET  /metrics, GET /healthz
//
// Authentication failures reach the client only as error=CredentialsSignin
// (or OAuthSignin/OAuthCallback) on the sign-in page, or as a 401 with a
// generic body. The failure kind goes to logs and audit events.
package server
