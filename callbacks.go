package goSession

import (
	"context"
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// TokenRefresh resolves the identity the next session token should carry.
// It runs on every refresh; returning ErrUserNotFound ends the session.
type TokenRefresh interface {
	Refresh(ctx context.Context, claims *jwt.SessionClaims) (identity.Identity, error)
}

// TokenRefreshFunc adapts a function to TokenRefresh.
type TokenRefreshFunc func(ctx context.Context, claims *jwt.SessionClaims) (identity.Identity, error)

func (f TokenRefreshFunc) Refresh(ctx context.Context, claims *jwt.SessionClaims) (identity.Identity, error) {
	return f(ctx, claims)
}

// SessionProjection maps verified claims to the session handed to handlers.
type SessionProjection interface {
	Project(claims *jwt.SessionClaims) *session.Session
}

// SessionProjectionFunc adapts a function to SessionProjection.
type SessionProjectionFunc func(claims *jwt.SessionClaims) *session.Session

func (f SessionProjectionFunc) Project(claims *jwt.SessionClaims) *session.Session {
	return f(claims)
}

// RedirectPolicy decides where to send the browser after sign-in or
// sign-out. It returns the URL to use; a non-nil error means target was
// replaced by a fallback.
type RedirectPolicy interface {
	Redirect(target, baseURL string) (string, error)
}

// RedirectPolicyFunc adapts a function to RedirectPolicy.
type RedirectPolicyFunc func(target, baseURL string) (string, error)

func (f RedirectPolicyFunc) Redirect(target, baseURL string) (string, error) {
	return f(target, baseURL)
}

// RefreshFromStore re-reads the user by the token's email.
func RefreshFromStore(users UserProvider) TokenRefresh {
	return TokenRefreshFunc(func(ctx context.Context, claims *jwt.SessionClaims) (identity.Identity, error) {
		user, err := users.FindUserByEmail(ctx, identity.NormalizeEmail(claims.Email))
		if err != nil {
			return identity.Identity{}, err
		}
		return user.Identity(), nil
	})
}

// DefaultSessionProjection is session.Project.
var DefaultSessionProjection SessionProjection = SessionProjectionFunc(session.Project)

// TrustAllRedirects returns every target unchanged. An empty target goes to
// baseURL.
type TrustAllRedirects struct{}

func (TrustAllRedirects) Redirect(target, baseURL string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return baseURL, nil
	}
	return target, nil
}

// DomainRedirects accepts relative paths, URLs on baseURL's origin, and URLs
// whose host is Domain or a subdomain of it. Anything else falls back to
// baseURL. An empty Domain restricts redirects to baseURL's host.
type DomainRedirects struct {
	Domain string
}

func (p DomainRedirects) Redirect(target, baseURL string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return baseURL, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL, ErrRedirectRejected
	}

	// "//host/path" is protocol-relative, not a path.
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\") {
		return strings.TrimRight(baseURL, "/") + target, nil
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return baseURL, ErrRedirectRejected
	}
	if strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host) {
		return target, nil
	}

	domain := strings.ToLower(strings.TrimPrefix(p.Domain, "."))
	if domain == "" {
		domain = strings.ToLower(base.Hostname())
	}
	host := strings.ToLower(u.Hostname())
	if host == domain || strings.HasSuffix(host, "."+domain) {
		if base.Scheme == "https" && u.Scheme != "https" {
			return baseURL, ErrRedirectRejected
		}
		return target, nil
	}
	return baseURL, ErrRedirectRejected
}
