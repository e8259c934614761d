package session

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// User is the user portion of a Session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Session is the externally visible shape of an authenticated session.
type Session struct {
	User    User      `json:"user"`
	Expires time.Time `json:"expires"`
}

// Project maps verified claims onto a Session. Nil claims produce a nil
// Session.
func Project(claims *jwt.SessionClaims) *Session {
	if claims == nil {
		return nil
	}
	s := &Session{
		User: User{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.FullName,
			Image: claims.Picture,
		},
	}
	if claims.ExpiresAt != nil {
		s.Expires = claims.ExpiresAt.Time.UTC()
	}
	return s
}

// DisplayName is the name to greet the user with.
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.User.Name != "" {
		return s.User.Name
	}
	return s.User.Email
}

// Authenticated reports whether s carries a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.User.ID != ""
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the Session stored by WithSession, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
