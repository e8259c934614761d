// Package flows holds the orchestration behind each Engine operation as plain
// functions over a dependency struct.
//
// RunVerifyCredentials and RunTokenRefresh return a Result with a Failure
// kind instead of root sentinel errors; the Engine maps kinds to its public
// errors, audit events and metrics.
//
// # What this package must NOT do
//
//   - Hold state between calls.
//   - Import goSession.
//   - Perform I/O except through the supplied dependencies.
package flows
