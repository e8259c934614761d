package goSession

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goSession/session"
)

// Materialize turns a session token into the session handed to handlers.
// A missing, expired or tampered token yields nil.
func (e *Engine) Materialize(token string) *session.Session {
	if e == nil || e.tokens == nil || token == "" {
		return nil
	}
	claims, err := e.tokens.Parse(token)
	if err != nil {
		return nil
	}
	return e.projection.Project(claims)
}

// SessionFromRequest materializes the session cookie carried by r.
func (e *Engine) SessionFromRequest(r *http.Request) *session.Session {
	if e == nil {
		return nil
	}
	token, ok := e.cookie.Read(r)
	if !ok {
		return nil
	}
	return e.Materialize(token)
}

// SessionToken returns the raw session token carried by r.
func (e *Engine) SessionToken(r *http.Request) (string, bool) {
	if e == nil {
		return "", false
	}
	return e.cookie.Read(r)
}

// CookieName returns the session cookie name, including the __Secure- prefix
// when secure cookies are configured. A nil engine yields "".
func (e *Engine) CookieName() string {
	if e == nil {
		return ""
	}
	return e.cookie.Name()
}

// SessionCookie returns the cookie carrying result's token.
func (e *Engine) SessionCookie(result *LoginResult) *http.Cookie {
	if result == nil {
		return e.cookie.Clear()
	}
	return e.cookie.New(result.Token, result.ExpiresAt)
}

// ClearSessionCookie returns a cookie that deletes the session cookie.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	return e.cookie.Clear()
}

// SignOut records the end of the session carried by token. Tokens are
// stateless; the caller must also clear the cookie.
func (e *Engine) SignOut(ctx context.Context, token string) {
	if e == nil {
		return
	}
	rec := auditRecord{}
	if s := e.Materialize(token); s != nil {
		rec.userID = s.User.ID
		rec.email = s.User.Email
	}
	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, true, rec)
}
