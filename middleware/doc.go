// Package middleware adapts a goSession.Engine to net/http.
//
//   - [ClientContext] records the client IP and User-Agent for throttling
//     and audit.
//   - [LoadSession] refreshes the session cookie on every request and puts
//     the materialized session into the request context.
//   - [RequireSession] turns anonymous requests away.
//   - [Throttle] applies a per-IP token bucket.
//   - [Logging] writes one structured log line per request.
//
// Authentication decisions stay in the Engine; this package never parses
// tokens itself.
package middleware
