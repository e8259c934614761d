package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{events: make(chan AuditEvent, buffer)}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// drain returns every event delivered so far. Call after Engine.Close.
func (s *captureSink) drain() []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case ev := <-s.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (s *captureSink) has(eventType string) bool {
	for _, ev := range s.drain() {
		if ev.EventType == eventType {
			return true
		}
	}
	return false
}

func TestAuditLoginOutcomes(t *testing.T) {
	sink := newCaptureSink(32)
	cfg := engineTestConfig()
	cfg.Security.EnableLoginThrottle = false
	engine, _ := newTestEngine(t, cfg, fixtureUsers(t), func(b *Builder) { b.WithAuditSink(sink) })

	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.7"), "test-agent")
	_, _ = engine.Login(ctx, "grace@example.com", "whatever1")
	_, _ = engine.Login(ctx, "ada@example.com", "correct horse")
	engine.Close()

	events := sink.drain()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	failure := events[0]
	if failure.EventType != auditEventLoginFailure || failure.Success {
		t.Fatalf("unexpected failure event %+v", failure)
	}
	if failure.Error != string(auditErrWrongLoginMethod) {
		t.Fatalf("failure error = %q", failure.Error)
	}
	if failure.UserID != "u2" || failure.IP != "192.0.2.7" || failure.Metadata["user_agent"] != "test-agent" {
		t.Fatalf("missing failure fields %+v", failure)
	}

	success := events[1]
	if success.EventType != auditEventLoginSuccess || !success.Success || success.Provider != CredentialsProvider {
		t.Fatalf("unexpected success event %+v", success)
	}
}

func TestAuditDisabled(t *testing.T) {
	sink := newCaptureSink(4)
	cfg := engineTestConfig()
	cfg.Audit.Enabled = false
	engine, _ := newTestEngine(t, cfg, fixtureUsers(t), func(b *Builder) { b.WithAuditSink(sink) })

	_, _ = engine.Login(context.Background(), "ada@example.com", "correct horse")
	engine.Close()

	if n := len(sink.drain()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("expected no drops")
	}
}

func TestAuditEventsCarryNoSecrets(t *testing.T) {
	var buf bytes.Buffer
	cfg := engineTestConfig()
	cfg.Security.EnableLoginThrottle = false
	engine, _ := newTestEngine(t, cfg, fixtureUsers(t), func(b *Builder) { b.WithAuditSink(NewJSONWriterSink(&buf)) })

	result, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, _ = engine.Login(context.Background(), "ada@example.com", "wrong password")
	engine.Close()

	out := buf.String()
	for _, secret := range []string{"correct horse", "wrong password", result.Token, "$2a$"} {
		if strings.Contains(out, secret) {
			t.Fatalf("audit output leaks %q", secret)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if ev.EventType != auditEventLoginSuccess {
		t.Fatalf("event type = %q", ev.EventType)
	}
}

func TestAuditErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{err: nil, want: ""},
		{err: ErrInvalidCredentials, want: auditErrInvalidCredentials},
		{err: ErrUnverifiedEmail, want: auditErrUnverifiedEmail},
		{err: ErrUserVanished, want: auditErrUserVanished},
		{err: ErrTokenInvalid, want: auditErrInvalidToken},
		{err: context.DeadlineExceeded, want: auditErrUnavailable},
		{err: ErrRedirectRejected, want: auditErrRedirectRejected},
		{err: bytes.ErrTooLarge, want: auditErrInternal},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
