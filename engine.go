package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine verifies credentials, completes OAuth logins and issues, refreshes
// and materializes session tokens. It is safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger
	tracer trace.Tracer

	users     UserProvider
	linker    AccountLinker
	updater   PasswordHashUpdater
	providers map[string]OAuthProvider

	oauthStates *oauthStateStore
	rateLimiter *rate.Limiter
	passwords   *password.Verifier
	tokens      *jwt.Manager

	refresh    TokenRefresh
	projection SessionProjection
	redirect   RedirectPolicy
	cookie     session.CookieConfig

	audit   *audit.Dispatcher
	metrics *Metrics
	flows   flows.Deps
}

// Close drains pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// CloseContext is Close bounded by ctx.
func (e *Engine) CloseContext(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.audit.CloseContext(ctx)
}

// AuditDropped returns the number of audit events dropped so far.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

func (e *Engine) buildFlowDeps() flows.Deps {
	creds := flows.CredentialDeps{
		FindUser:       e.findCredentialUser,
		UserNotFound:   ErrUserNotFound,
		VerifyPassword: e.passwords.Verify,
		ClientIP:       clientIPFromContext,
		Warn:           e.warn,
	}
	// a nil *rate.Limiter must not end up in the interface
	if e.rateLimiter != nil {
		creds.RateLimiter = e.rateLimiter
	}
	if e.updater != nil {
		creds.NeedsRehash = func(hash string) bool {
			stale, err := e.passwords.NeedsRehash(hash)
			return err == nil && stale
		}
		creds.UpgradeHash = func(ctx context.Context, userID, plaintext string) error {
			hash, err := e.passwords.Hash(plaintext)
			if err != nil {
				return err
			}
			return e.updater.UpdatePasswordHash(ctx, userID, hash)
		}
	}

	return flows.Deps{
		Credentials: creds,
		Token: flows.TokenDeps{
			UserNotFound: ErrUserNotFound,
		},
	}
}

func (e *Engine) findCredentialUser(ctx context.Context, email string) (*flows.CredentialUser, error) {
	user, err := e.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, e.storeError(err)
	}
	return &flows.CredentialUser{
		ID:            user.ID,
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		FullName:      user.FullName,
		Picture:       user.Picture,
		EmailVerified: user.EmailVerified,
		Providers:     user.Providers(),
	}, nil
}

// storeError keeps ErrUserNotFound and folds every other persistence error
// into ErrUserStoreUnavailable.
func (e *Engine) storeError(err error) error {
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
}

func (e *Engine) issue(id identity.Identity) (*LoginResult, error) {
	token, claims, err := e.tokens.Issue(jwt.Subject{
		UserID:   id.ID,
		Email:    id.Email,
		FullName: id.FullName,
		Picture:  id.Picture,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionIssueFailed, err)
	}
	return &LoginResult{
		Token:     token,
		Identity:  id,
		Claims:    claims,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
