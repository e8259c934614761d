package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"go.opentelemetry.io/otel/attribute"
)

// Issue signs a fresh session token for id.
func (e *Engine) Issue(ctx context.Context, id identity.Identity) (*LoginResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	_, span := e.tracer.Start(ctx, "goSession.Issue")
	result, err := e.issue(id)
	if err == nil {
		e.metricInc(MetricSessionIssued)
	}
	endSpan(span, err)
	return result, err
}

// Refresh re-issues token for the user it names. The TokenRefresh callback
// supplies the identity; a user that no longer exists yields ErrUserVanished
// and the caller must end the session.
func (e *Engine) Refresh(ctx context.Context, token string) (*LoginResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricRefreshLatency, time.Since(start))
	}()

	ctx, span := e.tracer.Start(ctx, "goSession.Refresh")
	result, err := e.refreshToken(ctx, token)
	if result != nil {
		span.SetAttributes(attribute.String("user.id", result.Identity.ID))
	}
	endSpan(span, err)
	return result, err
}

func (e *Engine) refreshToken(ctx context.Context, token string) (*LoginResult, error) {
	var (
		parsed *jwt.SessionClaims
		issued *LoginResult
	)

	deps := e.flows.Token
	deps.ParseToken = func(tok string) (*flows.TokenClaims, error) {
		claims, err := e.tokens.Parse(tok)
		if err != nil {
			return nil, err
		}
		parsed = claims
		return &flows.TokenClaims{
			UserID:   claims.UserID,
			Email:    claims.Email,
			FullName: claims.FullName,
			Picture:  claims.Picture,
		}, nil
	}
	deps.Refresh = func(ctx context.Context, _ flows.TokenClaims) (identity.Identity, error) {
		id, err := e.refresh.Refresh(ctx, parsed)
		if errors.Is(err, ErrUserVanished) {
			return identity.Identity{}, ErrUserNotFound
		}
		if err != nil {
			return identity.Identity{}, e.storeError(err)
		}
		return id, nil
	}
	deps.Issue = func(id identity.Identity) (string, error) {
		result, err := e.issue(id)
		if err != nil {
			return "", err
		}
		issued = result
		return result.Token, nil
	}

	result := flows.RunTokenRefresh(ctx, token, deps)
	if result.Failure == flows.TokenFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricSessionIssued)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, auditRecord{
			userID: result.UserID,
			email:  result.Identity.Email,
		})
		return issued, nil
	}

	var err error
	switch result.Failure {
	case flows.TokenFailureInvalid:
		err = ErrTokenInvalid
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, auditRecord{err: err})
	case flows.TokenFailureUserVanished:
		err = ErrUserVanished
		e.metricInc(MetricRefreshUserVanished)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventUserVanished, false, auditRecord{userID: result.UserID, err: err})
	case flows.TokenFailureIssue:
		err = result.Err
		if !errors.Is(err, ErrSessionIssueFailed) {
			err = fmt.Errorf("%w: %v", ErrSessionIssueFailed, result.Err)
		}
		e.logger.ErrorContext(ctx, "goSession: session reissue failed", "user_id", result.UserID, "error", result.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, auditRecord{userID: result.UserID, err: err})
	default:
		err = e.storeError(result.Err)
		e.logger.WarnContext(ctx, "goSession: token refresh lookup failed", "user_id", result.UserID, "error", result.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, auditRecord{userID: result.UserID, err: err})
	}
	return nil, err
}
