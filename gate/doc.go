// Package gate decides what a protected page shows for the current session.
//
// A [Gate] starts in [StatusUnknown] and resolves exactly once to
// [StatusAuthenticated] or [StatusUnauthenticated]. [Gate.Render] returns the
// login prompt or the greeting, never both.
package gate
