package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed credential logins."},
	{ID: goSession.MetricLoginWrongMethod, Name: "gosession_login_wrong_method_total", Help: "Credential logins for users without a password."},
	{ID: goSession.MetricLoginUnverified, Name: "gosession_login_unverified_total", Help: "Credential logins for users with an unverified email."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful session refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed session refreshes."},
	{ID: goSession.MetricRefreshUserVanished, Name: "gosession_refresh_user_vanished_total", Help: "Refreshes for users that no longer exist."},
	{ID: goSession.MetricSessionIssued, Name: "gosession_session_issued_total", Help: "Signed session tokens."},
	{ID: goSession.MetricSignOut, Name: "gosession_sign_out_total", Help: "Sign-outs."},
	{ID: goSession.MetricOAuthStarted, Name: "gosession_oauth_started_total", Help: "Started OAuth authorization flows."},
	{ID: goSession.MetricOAuthSuccess, Name: "gosession_oauth_success_total", Help: "Completed OAuth logins."},
	{ID: goSession.MetricOAuthFailure, Name: "gosession_oauth_failure_total", Help: "Failed OAuth callbacks."},
	{ID: goSession.MetricRedirectRejected, Name: "gosession_redirect_rejected_total", Help: "Redirect targets replaced by the fallback."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Session refresh latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed array, dropping extra buckets and
// zero-filling missing ones.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
