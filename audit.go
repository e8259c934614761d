package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one authentication outcome handed to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's background dispatcher.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	SlogSink       = audit.SlogSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshFailure   = "refresh_failure"
	auditEventUserVanished     = "user_vanished"
	auditEventOAuthStarted     = "oauth_started"
	auditEventOAuthSuccess     = "oauth_success"
	auditEventOAuthFailure     = "oauth_failure"
	auditEventRedirectRejected = "redirect_rejected"
	auditEventSignOut          = "sign_out"
)

// AuditErrorCode is the stable error string recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrWrongLoginMethod   AuditErrorCode = "wrong_login_method"
	auditErrUnverifiedEmail    AuditErrorCode = "unverified_email"
	auditErrUserVanished       AuditErrorCode = "user_vanished"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrIssueFailed        AuditErrorCode = "session_issue_failed"
	auditErrOAuthState         AuditErrorCode = "oauth_state_invalid"
	auditErrOAuthExchange      AuditErrorCode = "oauth_exchange_failed"
	auditErrOAuthProvider      AuditErrorCode = "oauth_provider_unknown"
	auditErrRedirectRejected   AuditErrorCode = "redirect_rejected"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditRecord carries the optional fields of an audit event.
type auditRecord struct {
	userID   string
	email    string
	provider string
	err      error
	metadata map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	metadata := rec.metadata
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    rec.userID,
		Email:     rec.email,
		Provider:  rec.provider,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrWrongLoginMethod):
		return auditErrWrongLoginMethod
	case errors.Is(err, ErrUnverifiedEmail):
		return auditErrUnverifiedEmail
	case errors.Is(err, ErrUserVanished):
		return auditErrUserVanished
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionIssueFailed):
		return auditErrIssueFailed
	case errors.Is(err, ErrOAuthStateInvalid):
		return auditErrOAuthState
	case errors.Is(err, ErrOAuthExchangeFailed):
		return auditErrOAuthExchange
	case errors.Is(err, ErrOAuthProviderUnknown):
		return auditErrOAuthProvider
	case errors.Is(err, ErrRedirectRejected):
		return auditErrRedirectRejected
	case errors.Is(err, ErrUserStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
