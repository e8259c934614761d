package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

// ClientContext attaches the client IP and User-Agent to the request context.
// Place it after any proxy header rewriting.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goSession.WithClientIP(r.Context(), ClientIP(r))
		ctx = goSession.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoadSession re-issues the session cookie on every request so profile
// changes reach the token, and stores the resulting session in the request
// context. Invalid tokens and deleted users clear the cookie. When the user
// store is unavailable the request proceeds without a session and the cookie
// is left untouched.
func LoadSession(engine *goSession.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := engine.SessionToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			var s *session.Session
			result, err := engine.Refresh(r.Context(), token)
			switch {
			case err == nil:
				http.SetCookie(w, engine.SessionCookie(result))
				s = engine.Materialize(result.Token)
			case errors.Is(err, goSession.ErrTokenInvalid), errors.Is(err, goSession.ErrUserVanished):
				http.SetCookie(w, engine.ClearSessionCookie())
			default:
				// anonymous for this request; the cookie stays for the next one
				if logger != nil {
					logger.WarnContext(r.Context(), "session refresh failed", "error", err)
				}
			}

			if s != nil {
				setLoggedUser(r.Context(), s.User.ID)
				r = r.WithContext(session.WithSession(r.Context(), s))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests without a session. Requests that accept
// JSON get a 401; browsers are redirected to signInURL with the current
// path as callbackUrl.
func RequireSession(signInURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s, ok := session.FromContext(r.Context()); ok && s.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if wantsJSON(r) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			http.Redirect(w, r, withCallback(signInURL, r.URL.RequestURI()), http.StatusFound)
		})
	}
}

func withCallback(signInURL, callback string) string {
	sep := "?"
	if strings.Contains(signInURL, "?") {
		sep = "&"
	}
	return signInURL + sep + "callbackUrl=" + url.QueryEscape(callback)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
