package goSession

import "errors"

// Authentication outcomes. Callers surface all of these to end users as one
// generic failure; the distinction is for audit, metrics and logs.
var (
	// ErrInvalidCredentials covers unknown emails and password mismatches.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWrongLoginMethod is returned when a passwordless user that is only
	// linked to external providers tries to log in with a password, and when
	// a provider login with an unverified email names an existing user.
	ErrWrongLoginMethod = errors.New("wrong login method")
	// ErrUnverifiedEmail is returned for users with neither a verified email
	// nor a linked account.
	ErrUnverifiedEmail = errors.New("unverified email")
	// ErrUserVanished is returned when the user behind a session token no
	// longer exists.
	ErrUserVanished = errors.New("user no longer exists")
)

var (
	// ErrUserNotFound is returned by UserProvider implementations for unknown
	// emails.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserStoreUnavailable wraps persistence failures and timeouts.
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrLoginRateLimited is returned while the login throttle is engaged.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrTokenInvalid is returned for missing, expired or tampered tokens.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrSessionIssueFailed is returned when a token cannot be signed.
	ErrSessionIssueFailed = errors.New("session issuance failed")
	// ErrOAuthProviderUnknown is returned for unregistered provider names.
	ErrOAuthProviderUnknown = errors.New("unknown oauth provider")
	// ErrOAuthStateInvalid is returned for unknown, expired or replayed states.
	ErrOAuthStateInvalid = errors.New("oauth state invalid")
	// ErrOAuthExchangeFailed wraps provider code exchange failures.
	ErrOAuthExchangeFailed = errors.New("oauth exchange failed")
	// ErrRedirectRejected is returned alongside the fallback URL when a
	// redirect target is not allowed.
	ErrRedirectRejected = errors.New("redirect target rejected")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsAuthFailure reports whether err is one of the credential outcomes that
// must be shown to users as a generic sign-in failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrWrongLoginMethod) ||
		errors.Is(err, ErrUnverifiedEmail) ||
		errors.Is(err, ErrUserVanished) ||
		errors.Is(err, ErrLoginRateLimited)
}
