package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goSession/identity"
)

// CredentialsProvider is the provider name recorded for password logins.
const CredentialsProvider = "credentials"

// CredentialFailureKind classifies credential verification failures for
// root-level mapping.
type CredentialFailureKind int

const (
	CredentialFailureNone CredentialFailureKind = iota
	CredentialFailureRateLimited
	CredentialFailureBackend
	CredentialFailureUnknownUser
	CredentialFailureWrongMethod
	CredentialFailureUnverified
	CredentialFailureMismatch
)

// CredentialUser is the persisted view the verifier needs.
type CredentialUser struct {
	ID            string
	Email         string
	PasswordHash  string
	FullName      string
	Picture       string
	EmailVerified bool
	Providers     []string
}

// CredentialResult carries either the verified identity or failure metadata.
type CredentialResult struct {
	Failure  CredentialFailureKind
	Err      error
	Email    string
	UserID   string
	Identity identity.Identity
}

// LoginRateLimiter throttles repeated failures per email and client IP.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, email, ip string) error
	IncrementLogin(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email, ip string) error
}

// CredentialDeps captures credential verification dependencies.
type CredentialDeps struct {
	FindUser       func(context.Context, string) (*CredentialUser, error)
	UserNotFound   error
	VerifyPassword func(plaintext, hash string) (bool, error)
	NeedsRehash    func(hash string) bool
	UpgradeHash    func(ctx context.Context, userID, plaintext string) error
	ClientIP       func(context.Context) string
	RateLimiter    LoginRateLimiter
	Warn           func(string, ...any)
}

// RunVerifyCredentials checks an email/password pair against the stored user.
//
// Checks run in a fixed order: unknown user, passwordless user linked only
// to external providers, unverified user with no linked accounts, then the
// password comparison. The password hash never appears in the result.
func RunVerifyCredentials(ctx context.Context, email, plaintext string, deps CredentialDeps) CredentialResult {
	email = identity.NormalizeEmail(email)
	ip := ""
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, email, ip); err != nil {
			return CredentialResult{Failure: CredentialFailureRateLimited, Err: err, Email: email}
		}
	}

	fail := func(kind CredentialFailureKind, userID string, err error) CredentialResult {
		if deps.RateLimiter != nil && email != "" {
			if incErr := deps.RateLimiter.IncrementLogin(ctx, email, ip); incErr != nil && deps.Warn != nil {
				deps.Warn("goSession: login limiter increment failed", "error", incErr)
			}
		}
		return CredentialResult{Failure: kind, Err: err, Email: email, UserID: userID}
	}

	if email == "" {
		return fail(CredentialFailureUnknownUser, "", nil)
	}

	user, err := deps.FindUser(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return fail(CredentialFailureUnknownUser, "", err)
		}
		return CredentialResult{Failure: CredentialFailureBackend, Err: err, Email: email}
	}
	if user == nil {
		return fail(CredentialFailureUnknownUser, "", nil)
	}

	if user.PasswordHash == "" && firstLinkedExternally(user.Providers) {
		return fail(CredentialFailureWrongMethod, user.ID, nil)
	}
	if !user.EmailVerified && len(user.Providers) == 0 {
		return fail(CredentialFailureUnverified, user.ID, nil)
	}

	ok, err := deps.VerifyPassword(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return fail(CredentialFailureMismatch, user.ID, err)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, email, ip); err != nil && deps.Warn != nil {
			deps.Warn("goSession: login limiter reset failed", "error", err)
		}
	}

	if deps.NeedsRehash != nil && deps.UpgradeHash != nil && deps.NeedsRehash(user.PasswordHash) {
		if err := deps.UpgradeHash(ctx, user.ID, plaintext); err != nil && deps.Warn != nil {
			deps.Warn("goSession: password hash upgrade failed", "user_id", user.ID, "error", err)
		}
	}

	return CredentialResult{
		Email:    email,
		UserID:   user.ID,
		Identity: identity.New(user.ID, user.FullName, user.Email, user.Picture),
	}
}

// firstLinkedExternally reports whether the first linked account belongs to
// an external provider. Accounts after the first are not consulted.
func firstLinkedExternally(providers []string) bool {
	if len(providers) == 0 {
		return false
	}
	return !strings.EqualFold(providers[0], CredentialsProvider)
}
