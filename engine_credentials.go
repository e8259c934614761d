package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
)

// VerifyCredentials checks an email and password against the user store.
//
// The returned error is one of ErrInvalidCredentials, ErrWrongLoginMethod,
// ErrUnverifiedEmail, ErrLoginRateLimited or ErrUserStoreUnavailable.
// Callers must present all of them to end users as the same generic
// failure.
func (e *Engine) VerifyCredentials(ctx context.Context, email, password string) (identity.Identity, error) {
	if e == nil || e.passwords == nil {
		return identity.Identity{}, ErrEngineNotReady
	}

	ctx, span := e.tracer.Start(ctx, "goSession.VerifyCredentials")
	id, err := e.verifyCredentials(ctx, email, password)
	if err == nil {
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, auditRecord{
			userID:   id.ID,
			email:    id.Email,
			provider: CredentialsProvider,
		})
	}
	endSpan(span, err)
	return id, err
}

func (e *Engine) verifyCredentials(ctx context.Context, email, password string) (identity.Identity, error) {
	result := flows.RunVerifyCredentials(ctx, email, password, e.flows.Credentials)
	if result.Failure == flows.CredentialFailureNone {
		return result.Identity, nil
	}

	err := credentialError(result)
	rec := auditRecord{
		userID:   result.UserID,
		email:    result.Email,
		provider: CredentialsProvider,
		err:      err,
	}

	switch result.Failure {
	case flows.CredentialFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, rec)
	case flows.CredentialFailureWrongMethod:
		e.metricInc(MetricLoginWrongMethod)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec)
	case flows.CredentialFailureUnverified:
		e.metricInc(MetricLoginUnverified)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec)
	case flows.CredentialFailureBackend:
		e.logger.ErrorContext(ctx, "goSession: user lookup failed", "error", result.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec)
	}
	return identity.Identity{}, err
}

func credentialError(result flows.CredentialResult) error {
	switch result.Failure {
	case flows.CredentialFailureRateLimited:
		if result.Err != nil && !errors.Is(result.Err, rate.ErrRateLimited) {
			// throttle backend down: fail closed
			return fmt.Errorf("%w: %v", ErrLoginRateLimited, result.Err)
		}
		return ErrLoginRateLimited
	case flows.CredentialFailureBackend:
		if errors.Is(result.Err, ErrUserStoreUnavailable) {
			return result.Err
		}
		return fmt.Errorf("%w: %v", ErrUserStoreUnavailable, result.Err)
	case flows.CredentialFailureWrongMethod:
		return ErrWrongLoginMethod
	case flows.CredentialFailureUnverified:
		return ErrUnverifiedEmail
	default:
		return ErrInvalidCredentials
	}
}

// Login verifies credentials and issues a session token.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.passwords == nil {
		return nil, ErrEngineNotReady
	}

	ctx, span := e.tracer.Start(ctx, "goSession.Login")
	result, err := e.login(ctx, email, password)
	endSpan(span, err)
	return result, err
}

func (e *Engine) login(ctx context.Context, email, password string) (*LoginResult, error) {
	id, err := e.verifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	result, err := e.issue(id)
	if err != nil {
		e.logger.ErrorContext(ctx, "goSession: session issue failed", "user_id", id.ID, "error", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, auditRecord{
			userID:   id.ID,
			email:    id.Email,
			provider: CredentialsProvider,
			err:      err,
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventLoginSuccess, true, auditRecord{
		userID:   id.ID,
		email:    id.Email,
		provider: CredentialsProvider,
	})
	return result, nil
}

// HashPassword hashes plaintext with the configured primary algorithm, for
// applications that create credential users.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.passwords == nil {
		return "", ErrEngineNotReady
	}
	return e.passwords.Hash(plaintext)
}
