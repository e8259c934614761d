package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/jwt"
)

// CredentialsProvider is the provider name for password logins.
const CredentialsProvider = "credentials"

// LinkedAccount is an external login attached to a user.
type LinkedAccount struct {
	Provider          string
	ProviderAccountID string
}

// UserRecord is the persisted user as seen by the engine. PasswordHash is
// empty for users that never set a password.
type UserRecord struct {
	ID            string
	Email         string
	PasswordHash  string
	FullName      string
	Picture       string
	EmailVerified bool
	Accounts      []LinkedAccount
}

// Identity returns the canonical identity for u.
func (u UserRecord) Identity() identity.Identity {
	return identity.New(u.ID, u.FullName, u.Email, u.Picture)
}

// Providers returns the provider name of every linked account.
func (u UserRecord) Providers() []string {
	out := make([]string, 0, len(u.Accounts))
	for _, a := range u.Accounts {
		out = append(out, a.Provider)
	}
	return out
}

// UserProvider is the persistence boundary. FindUserByEmail must include
// linked accounts and return ErrUserNotFound for unknown emails.
type UserProvider interface {
	FindUserByEmail(ctx context.Context, email string) (UserRecord, error)
}

// AccountLinker is optionally implemented by a UserProvider to create or
// update users on OAuth login.
type AccountLinker interface {
	LinkOAuthAccount(ctx context.Context, provider string, profile identity.Profile) (UserRecord, error)
}

// PasswordHashUpdater is optionally implemented by a UserProvider to store
// upgraded password hashes after a successful login.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// OAuthProvider exchanges an authorization code for a profile.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state, codeVerifier string) string
	Exchange(ctx context.Context, code, codeVerifier string) (identity.Profile, error)
}

// LoginResult is a freshly signed session token.
type LoginResult struct {
	Token     string
	Identity  identity.Identity
	Claims    *jwt.SessionClaims
	ExpiresAt time.Time
}

// OAuthStart is returned by Engine.BeginOAuth.
type OAuthStart struct {
	Provider string
	State    string
	URL      string
}

// OAuthResult is returned by Engine.CompleteOAuth.
type OAuthResult struct {
	LoginResult
	Provider    string
	RedirectURL string
}
