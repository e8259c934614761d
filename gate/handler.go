package gate

import (
	"net/http"

	"github.com/MrEthical07/goSession/session"
	"github.com/a-h/templ"
)

// Handler serves a gated page. The session is taken from the request
// context, where middleware.LoadSession puts it. signInURL is evaluated per
// request so it can carry the current path as callback.
func Handler(signInURL func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		g := New(signInURL(r))
		if g.Resolve(s) == StatusUnauthenticated {
			w.Header().Set("Cache-Control", "no-store")
		}
		templ.Handler(g.Render()).ServeHTTP(w, r)
	})
}

// Page serves a static component, such as the login form.
func Page(c templ.Component) http.Handler {
	return templ.Handler(c)
}
