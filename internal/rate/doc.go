// Package rate implements the Redis-backed fixed-window login throttle.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit of a window. Keys:
//   - gs:login:u:<email>  failed logins per email
//   - gs:login:ip:<ip>    failed logins per client IP (optional)
//
// Only failures are counted; a successful login clears both keys.
package rate
