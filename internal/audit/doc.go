// Package audit buffers authentication events and delivers them to a sink.
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: async relay with drop-if-full or block-if-full semantics.
//
// The Engine decides which events to emit; this package only moves them.
// Emails are never attached by the Engine to failure events, so a sink
// cannot be used to enumerate accounts.
package audit
