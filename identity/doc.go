// Package identity defines the canonical user identity shared by every login
// method, and the pure mapping from external OAuth profiles onto it.
//
// # Architecture boundaries
//
// This package holds value types and pure functions only. It performs no I/O
// and never sees password hashes.
package identity
