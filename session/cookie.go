package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultCookieName is the unprefixed session cookie name.
	DefaultCookieName = "next-session-token"
	securePrefix      = "__Secure-"
)

// CookieConfig describes how the session cookie is written.
type CookieConfig struct {
	BaseName string
	Secure   bool
	Domain   string
	Path     string
	SameSite http.SameSite
	MaxAge   time.Duration
}

// Name returns the cookie name, with the __Secure- prefix when Secure.
func (c CookieConfig) Name() string {
	base := c.BaseName
	if base == "" {
		base = DefaultCookieName
	}
	if c.Secure {
		return securePrefix + base
	}
	return base
}

// New returns the cookie carrying token.
func (c CookieConfig) New(token string, expires time.Time) *http.Cookie {
	cookie := c.base()
	cookie.Value = token
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
		cookie.MaxAge = int(time.Until(expires).Seconds())
		if cookie.MaxAge <= 0 {
			cookie.MaxAge = -1
		}
	} else if c.MaxAge > 0 {
		cookie.MaxAge = int(c.MaxAge.Seconds())
	}
	return cookie
}

// Clear returns a cookie that deletes the session cookie.
func (c CookieConfig) Clear() *http.Cookie {
	cookie := c.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	return cookie
}

// Read returns the session token carried by r, if any.
func (c CookieConfig) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.Name())
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c CookieConfig) base() *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	sameSite := c.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	cookie := &http.Cookie{
		Name:     c.Name(),
		Path:     path,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
	if c.Secure && c.Domain != "" {
		cookie.Domain = strings.TrimPrefix(c.Domain, ".")
	}
	return cookie
}
