// Package otel binds engine metrics to an OpenTelemetry Meter.
//
// Counters are grouped per flow and split by attribute:
//
//	gosession.logins               outcome=success|failure|wrong_method|unverified|rate_limited
//	gosession.session.refreshes    outcome=success|failure|user_vanished
//	gosession.oauth.flows          stage=started|success|failure
//	gosession.sessions.issued, gosession.sign_outs,
//	gosession.redirects.rejected, gosession.audit.dropped
//
// Refresh latency is published as a cumulative bucket gauge keyed by "le"
// (seconds, "+Inf" last) and a sample count gauge. One callback reads
// [goSession.Engine.MetricsSnapshot] per collection.
//
// The exporter never owns the MeterProvider and never mutates engine state.
package otel
