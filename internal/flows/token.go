package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/identity"
)

// TokenFailureKind classifies refresh failures for root-level mapping.
type TokenFailureKind int

const (
	TokenFailureNone TokenFailureKind = iota
	TokenFailureInvalid
	TokenFailureUserVanished
	TokenFailureBackend
	TokenFailureIssue
)

// TokenClaims is the identity currently carried by a session token.
type TokenClaims struct {
	UserID   string
	Email    string
	FullName string
	Picture  string
}

// TokenResult carries the re-issued token or failure metadata.
type TokenResult struct {
	Failure  TokenFailureKind
	Err      error
	UserID   string
	Token    string
	Identity identity.Identity
}

// TokenDeps captures refresh flow dependencies.
type TokenDeps struct {
	ParseToken func(string) (*TokenClaims, error)
	// Refresh resolves the identity the next token should carry.
	Refresh      func(context.Context, TokenClaims) (identity.Identity, error)
	Issue        func(identity.Identity) (string, error)
	UserNotFound error
}

// RunTokenRefresh parses the current token, resolves the current identity
// and signs a new token. A user that no longer exists ends the session; the
// flow never falls back to the claims it was handed.
func RunTokenRefresh(ctx context.Context, token string, deps TokenDeps) TokenResult {
	claims, err := deps.ParseToken(token)
	if err != nil || claims == nil {
		return TokenResult{Failure: TokenFailureInvalid, Err: err}
	}

	current, err := deps.Refresh(ctx, *claims)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return TokenResult{Failure: TokenFailureUserVanished, Err: err, UserID: claims.UserID}
		}
		return TokenResult{Failure: TokenFailureBackend, Err: err, UserID: claims.UserID}
	}
	if current.ID == "" {
		return TokenResult{Failure: TokenFailureUserVanished, UserID: claims.UserID}
	}

	next, err := deps.Issue(current)
	if err != nil {
		return TokenResult{Failure: TokenFailureIssue, Err: err, UserID: current.ID}
	}

	return TokenResult{UserID: current.ID, Token: next, Identity: current}
}
