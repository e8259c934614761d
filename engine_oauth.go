package goSession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

// Providers returns the names of the registered OAuth providers.
func (e *Engine) Providers() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.providers))
	for name := range e.providers {
		names = append(names, name)
	}
	return names
}

func (e *Engine) provider(name string) (OAuthProvider, string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := e.providers[name]
	if !ok {
		return nil, name, ErrOAuthProviderUnknown
	}
	return p, name, nil
}

// BeginOAuth starts an authorization-code flow with PKCE. The state and code
// verifier are kept in Redis for OAuth.StateTTL; callbackURL is where the
// browser goes after CompleteOAuth.
func (e *Engine) BeginOAuth(ctx context.Context, provider, callbackURL string) (*OAuthStart, error) {
	if e == nil || e.oauthStates == nil {
		return nil, ErrEngineNotReady
	}

	ctx, span := e.tracer.Start(ctx, "goSession.BeginOAuth")
	start, err := e.beginOAuth(ctx, provider, callbackURL)
	endSpan(span, err)
	return start, err
}

func (e *Engine) beginOAuth(ctx context.Context, provider, callbackURL string) (*OAuthStart, error) {
	p, name, err := e.provider(provider)
	if err != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, auditEventOAuthFailure, false, auditRecord{provider: name, err: err})
		return nil, err
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	ttl := e.config.OAuth.StateTTL
	record := &oauthState{
		Provider:    name,
		Verifier:    verifier,
		CallbackURL: callbackURL,
		ExpiresAt:   time.Now().Add(ttl).Unix(),
	}
	if err := e.oauthStates.Save(ctx, state, record, ttl); err != nil {
		e.logger.ErrorContext(ctx, "goSession: oauth state save failed", "provider", name, "error", err)
		e.metricInc(MetricOAuthFailure)
		return nil, fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
	}

	e.metricInc(MetricOAuthStarted)
	e.emitAudit(ctx, auditEventOAuthStarted, true, auditRecord{provider: name})
	return &OAuthStart{
		Provider: name,
		State:    state,
		URL:      p.AuthCodeURL(state, verifier),
	}, nil
}

// CompleteOAuth consumes state, exchanges code with the provider and issues
// a session token. A state can be completed once; replays and states
// started for another provider yield ErrOAuthStateInvalid.
func (e *Engine) CompleteOAuth(ctx context.Context, provider, state, code string) (*OAuthResult, error) {
	if e == nil || e.oauthStates == nil {
		return nil, ErrEngineNotReady
	}

	ctx, span := e.tracer.Start(ctx, "goSession.CompleteOAuth")
	span.SetAttributes(attribute.String("oauth.provider", provider))
	result, err := e.completeOAuth(ctx, provider, state, code)
	endSpan(span, err)
	return result, err
}

func (e *Engine) completeOAuth(ctx context.Context, provider, state, code string) (*OAuthResult, error) {
	p, name, err := e.provider(provider)
	if err != nil {
		return nil, e.oauthFailed(ctx, name, "", err)
	}
	if state == "" || code == "" {
		return nil, e.oauthFailed(ctx, name, "", ErrOAuthStateInvalid)
	}

	record, err := e.oauthStates.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, errOAuthStateBackend) {
			e.logger.ErrorContext(ctx, "goSession: oauth state lookup failed", "provider", name, "error", err)
		}
		return nil, e.oauthFailed(ctx, name, "", fmt.Errorf("%w: %v", ErrOAuthStateInvalid, err))
	}
	if record.Provider != name {
		return nil, e.oauthFailed(ctx, name, "", ErrOAuthStateInvalid)
	}

	profile, err := p.Exchange(ctx, code, record.Verifier)
	if err != nil {
		return nil, e.oauthFailed(ctx, name, "", fmt.Errorf("%w: %v", ErrOAuthExchangeFailed, err))
	}
	profile.Email = identity.NormalizeEmail(profile.Email)
	if profile.Sub == "" || profile.Email == "" {
		return nil, e.oauthFailed(ctx, name, "", fmt.Errorf("%w: profile lacks subject or email", ErrOAuthExchangeFailed))
	}

	id := identity.FromProfile(profile)
	if e.linker != nil {
		user, err := e.linker.LinkOAuthAccount(ctx, name, profile)
		if errors.Is(err, ErrWrongLoginMethod) {
			e.metricInc(MetricLoginWrongMethod)
			return nil, e.oauthFailed(ctx, name, profile.Email, err)
		}
		if err != nil {
			return nil, e.oauthFailed(ctx, name, profile.Email, e.storeError(err))
		}
		id = user.Identity()
	}

	issued, err := e.issue(id)
	if err != nil {
		return nil, e.oauthFailed(ctx, name, id.Email, err)
	}

	e.metricInc(MetricOAuthSuccess)
	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventOAuthSuccess, true, auditRecord{
		userID:   id.ID,
		email:    id.Email,
		provider: name,
	})

	return &OAuthResult{
		LoginResult: *issued,
		Provider:    name,
		RedirectURL: e.ResolveRedirect(ctx, record.CallbackURL),
	}, nil
}

func (e *Engine) oauthFailed(ctx context.Context, provider, email string, err error) error {
	e.metricInc(MetricOAuthFailure)
	e.emitAudit(ctx, auditEventOAuthFailure, false, auditRecord{
		email:    email,
		provider: provider,
		err:      err,
	})
	return err
}
